package scripted_debugger

import (
	"errors"
	"fmt"

	"github.com/fansqz/midas-dap/debugger"
)

var errFrameInvalid = errors.New("Frame is invalid.")

// frame 场景中的栈帧，始终根据线程当前的调用栈定位自己
type frame struct {
	d        *ScriptedDebugger
	threadID int
	spec     *FrameSpec
}

func (f *frame) Equal(other debugger.Frame) bool {
	o, ok := other.(*frame)
	if !ok || o == nil {
		return false
	}
	return o.threadID == f.threadID && o.spec.ID == f.spec.ID
}

func (f *frame) Older() (debugger.Frame, error) {
	f.d.mutex.Lock()
	defer f.d.mutex.Unlock()
	frames := f.d.stacks[f.threadID]
	level := indexOf(frames, f.spec.ID)
	if level < 0 {
		return nil, errFrameInvalid
	}
	if level+1 >= len(frames) {
		return nil, nil
	}
	return &frame{d: f.d, threadID: f.threadID, spec: frames[level+1]}, nil
}

func (f *frame) Select() error {
	f.d.mutex.Lock()
	defer f.d.mutex.Unlock()
	if indexOf(f.d.stacks[f.threadID], f.spec.ID) < 0 {
		return errFrameInvalid
	}
	f.d.selectedThread = f.threadID
	f.d.selectedFrame = f.spec.ID
	return nil
}

func (f *frame) Level() int {
	f.d.mutex.Lock()
	defer f.d.mutex.Unlock()
	return indexOf(f.d.stacks[f.threadID], f.spec.ID)
}

func (f *frame) Function() string {
	return f.current().Function
}

// current 同一个物理栈帧在单步之后位置和变量会变化，总是读取线程当前调用栈中的描述
func (f *frame) current() *FrameSpec {
	f.d.mutex.Lock()
	defer f.d.mutex.Unlock()
	frames := f.d.stacks[f.threadID]
	if level := indexOf(frames, f.spec.ID); level >= 0 {
		return frames[level]
	}
	return f.spec
}

func (f *frame) Location() debugger.Location {
	spec := f.current()
	return debugger.Location{Path: spec.Path, Line: spec.Line, PC: spec.PC}
}

func (f *frame) Blocks() ([]debugger.Block, error) {
	spec := f.current()
	blocks := make([]debugger.Block, 0, len(spec.Blocks))
	for _, b := range spec.Blocks {
		symbols := make([]debugger.Symbol, 0, len(b.Symbols))
		for _, s := range b.Symbols {
			symbols = append(symbols, symbolOf(s))
		}
		blocks = append(blocks, debugger.Block{Symbols: symbols, Function: b.Function})
	}
	return blocks, nil
}

func (f *frame) StaticSymbols() ([]debugger.Symbol, error) {
	symbols := make([]debugger.Symbol, 0, len(f.d.scenario.Statics))
	for _, s := range f.d.scenario.Statics {
		symbols = append(symbols, symbolOf(s))
	}
	return symbols, nil
}

func symbolOf(spec *ValueSpec) debugger.Symbol {
	return debugger.Symbol{
		Name:         spec.Name,
		Type:         spec.Type,
		IsArgument:   spec.Argument,
		OptimizedOut: spec.SymbolOptimizedOut,
	}
}

// ReadVariable 从最内层的块开始查找符号
func (f *frame) ReadVariable(symbol debugger.Symbol) (debugger.Value, error) {
	spec := f.lookup(symbol.Name)
	if spec == nil {
		return nil, fmt.Errorf("No symbol \"%s\" in current context.", symbol.Name)
	}
	if spec.Unreadable != "" {
		return nil, errors.New(spec.Unreadable)
	}
	return newValue(f.d, spec), nil
}

func (f *frame) lookup(name string) *ValueSpec {
	for _, b := range f.current().Blocks {
		for _, s := range b.Symbols {
			if s.Name == name {
				return s
			}
		}
	}
	for _, s := range f.d.scenario.Statics {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (f *frame) RegisterGroups() ([]debugger.RegisterGroup, error) {
	groups := make([]debugger.RegisterGroup, 0, len(f.d.scenario.RegisterGroups))
	for _, g := range f.d.scenario.RegisterGroups {
		names := make([]string, 0, len(g.Registers))
		for _, r := range g.Registers {
			names = append(names, r.Name)
		}
		groups = append(groups, debugger.RegisterGroup{Name: g.Name, Registers: names})
	}
	return groups, nil
}

func (f *frame) ReadRegister(name string) (debugger.Value, error) {
	f.d.registerReads.Add(1)
	for _, r := range f.current().Registers {
		if r.Name == name {
			return newValue(f.d, r), nil
		}
	}
	for _, g := range f.d.scenario.RegisterGroups {
		for _, r := range g.Registers {
			if r.Name == name {
				return newValue(f.d, r), nil
			}
		}
	}
	return nil, fmt.Errorf("Invalid register `%s'", name)
}

func indexOf(frames []*FrameSpec, id string) int {
	for i, f := range frames {
		if f.ID == id {
			return i
		}
	}
	return -1
}
