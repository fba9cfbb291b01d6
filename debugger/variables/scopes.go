package variables

import (
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	e "github.com/fansqz/midas-dap/error"
)

// readResult 单个符号的读取结果
type readResult struct {
	symbol debugger.Symbol
	value  debugger.Value
	err    error
}

func readSymbol(frame debugger.Frame, symbol debugger.Symbol) readResult {
	v, err := frame.ReadVariable(symbol)
	if err != nil {
		return readResult{symbol: symbol, err: e.NewBackendReadError(symbol.Name, err)}
	}
	return readResult{symbol: symbol, value: v}
}

func (c *ValueContainer) scopeChildren() ([]child, error) {
	var results []readResult
	var err error
	switch c.scope {
	case constants.LocalsScope:
		results, err = frameLocals(c.frame)
	case constants.ArgsScope:
		results, err = frameArgs(c.frame)
	case constants.StaticScope:
		results, err = frameStatics(c.frame)
	}
	if err != nil {
		return nil, err
	}
	children := make([]child, 0, len(results))
	for _, res := range results {
		if res.err != nil {
			children = append(children, child{name: res.symbol.Name, evaluateName: res.symbol.Name, err: res.err})
			continue
		}
		children = append(children, c.valueChild(res.symbol.Name, res.symbol.Name, res.value))
	}
	return children, nil
}

// registerChildren 寄存器每次都重新读取
func (c *ValueContainer) registerChildren() ([]child, error) {
	children := make([]child, 0, len(c.group.Registers))
	for _, name := range c.group.Registers {
		v, err := c.frame.ReadRegister(name)
		if err != nil {
			children = append(children, child{name: name, evaluateName: "$" + name, err: e.NewBackendReadError(name, err)})
			continue
		}
		children = append(children, c.valueChild(name, "$"+name, v))
	}
	return children, nil
}

// frameLocals 从最内层的词法块一直遍历到函数的顶层块
// 内层块的同名变量遮蔽外层的，参数、编译器生成的符号和被优化掉的符号不展示
func frameLocals(frame debugger.Frame) ([]readResult, error) {
	blocks, err := frame.Blocks()
	if err != nil {
		return nil, e.NewBackendReadError("locals", err)
	}
	seen := hashset.New()
	var results []readResult
	for _, block := range blocks {
		for _, symbol := range block.Symbols {
			if symbol.IsArgument || symbol.OptimizedOut || isSynthesized(symbol.Name) || seen.Contains(symbol.Name) {
				continue
			}
			seen.Add(symbol.Name)
			results = append(results, readSymbol(frame, symbol))
		}
		if block.Function {
			break
		}
	}
	return results, nil
}

// frameArgs 函数参数
func frameArgs(frame debugger.Frame) ([]readResult, error) {
	blocks, err := frame.Blocks()
	if err != nil {
		return nil, e.NewBackendReadError("arguments", err)
	}
	seen := hashset.New()
	var results []readResult
	for _, block := range blocks {
		for _, symbol := range block.Symbols {
			if !symbol.IsArgument || seen.Contains(symbol.Name) {
				continue
			}
			seen.Add(symbol.Name)
			results = append(results, readSymbol(frame, symbol))
		}
		if block.Function {
			break
		}
	}
	return results, nil
}

// frameStatics 文件级别的静态变量
func frameStatics(frame debugger.Frame) ([]readResult, error) {
	symbols, err := frame.StaticSymbols()
	if err != nil {
		return nil, e.NewBackendReadError("statics", err)
	}
	results := make([]readResult, 0, len(symbols))
	for _, symbol := range symbols {
		if symbol.OptimizedOut || isSynthesized(symbol.Name) {
			continue
		}
		results = append(results, readSymbol(frame, symbol))
	}
	return results, nil
}
