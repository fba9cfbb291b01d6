package stack

import (
	"fmt"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/debugger/variables"
	e "github.com/fansqz/midas-dap/error"
	"github.com/sirupsen/logrus"
)

// Scope 作用域
type Scope struct {
	Name               string
	VariablesReference int
	PresentationHint   string
	Expensive          bool
}

// FrameDescriptor 客户端看到的栈帧
type FrameDescriptor struct {
	ID   int
	Name string
	Path string
	Line int
	PC   uint64
}

// StackFrame 包装一个后端栈帧
// localsReference同时作为栈帧的id，栈帧被弹出之后它拥有的所有引用都会被释放
type StackFrame struct {
	frame    debugger.Frame
	threadID int
	registry *variables.ReferenceUtil

	localsReference    int
	argsReference      int
	staticsReference   int
	registerReferences []int
	scopes             map[int]*variables.ValueContainer

	variableReferences      map[int]*variables.ValueContainer
	watchVariableReferences map[int]*variables.ValueContainer
	watchVariables          map[string]*variables.ValueContainer
}

func NewStackFrame(registry *variables.ReferenceUtil, threadID int, frame debugger.Frame) *StackFrame {
	sf := &StackFrame{
		frame:                   frame,
		threadID:                threadID,
		registry:                registry,
		scopes:                  map[int]*variables.ValueContainer{},
		variableReferences:      map[int]*variables.ValueContainer{},
		watchVariableReferences: map[int]*variables.ValueContainer{},
		watchVariables:          map[string]*variables.ValueContainer{},
	}
	sf.localsReference = sf.addScope(variables.NewScope(sf, constants.LocalsScope, frame))
	sf.argsReference = sf.addScope(variables.NewScope(sf, constants.ArgsScope, frame))
	groups, err := frame.RegisterGroups()
	if err != nil {
		logrus.Warnf("[StackFrame] read register groups of %s fail, err = %v", frame.Function(), err)
	}
	for _, group := range groups {
		sf.registerReferences = append(sf.registerReferences, sf.addScope(variables.NewRegisterGroup(sf, frame, group)))
	}
	return sf
}

// addScope 作用域引用绑定到自己，第一个作用域的引用就是栈帧id
func (sf *StackFrame) addScope(c *variables.ValueContainer) int {
	ref := sf.registry.Allocate(c)
	if sf.localsReference == 0 {
		sf.registry.Bind(ref, sf.threadID, ref)
	} else {
		sf.registry.Bind(ref, sf.threadID, sf.localsReference)
	}
	sf.scopes[ref] = c
	return ref
}

// Adopt 为子容器分配引用
func (sf *StackFrame) Adopt(c *variables.ValueContainer) int {
	ref := sf.registry.Allocate(c)
	sf.registry.Bind(ref, sf.threadID, sf.localsReference)
	sf.variableReferences[ref] = c
	if c.Watched() {
		sf.watchVariableReferences[ref] = c
	}
	return ref
}

// Disown 释放子容器的引用
func (sf *StackFrame) Disown(c *variables.ValueContainer) {
	ref := c.Handle()
	sf.registry.Release(ref)
	delete(sf.variableReferences, ref)
	delete(sf.watchVariableReferences, ref)
}

// FrameID 栈帧id
func (sf *StackFrame) FrameID() int {
	return sf.localsReference
}

func (sf *StackFrame) Frame() debugger.Frame {
	return sf.frame
}

func (sf *StackFrame) ThreadID() int {
	return sf.threadID
}

// IsSameFrame 是否包装的是同一个物理栈帧
func (sf *StackFrame) IsSameFrame(frame debugger.Frame) bool {
	return sf.frame.Equal(frame)
}

// Descriptor 每次都从后端读取当前位置
func (sf *StackFrame) Descriptor() FrameDescriptor {
	loc := sf.frame.Location()
	name := sf.frame.Function()
	if name == "" {
		name = fmt.Sprintf("0x%x", loc.PC)
	}
	return FrameDescriptor{
		ID:   sf.localsReference,
		Name: name,
		Path: loc.Path,
		Line: loc.Line,
		PC:   loc.PC,
	}
}

// Scopes 静态变量作用域在第一次请求时才创建
func (sf *StackFrame) Scopes() []Scope {
	if sf.staticsReference == 0 {
		sf.staticsReference = sf.addScope(variables.NewScope(sf, constants.StaticScope, sf.frame))
	}
	scopes := []Scope{
		{Name: string(constants.LocalsScope), VariablesReference: sf.localsReference, PresentationHint: "locals"},
		{Name: string(constants.ArgsScope), VariablesReference: sf.argsReference, PresentationHint: "arguments"},
	}
	for _, ref := range sf.registerReferences {
		scopes = append(scopes, Scope{
			Name:               fmt.Sprintf("%s (%s)", constants.RegisterScope, sf.scopes[ref].Name()),
			VariablesReference: ref,
			PresentationHint:   "registers",
		})
	}
	scopes = append(scopes, Scope{
		Name:               string(constants.StaticScope),
		VariablesReference: sf.staticsReference,
		Expensive:          true,
	})
	return scopes
}

// GetLocals 局部变量
func (sf *StackFrame) GetLocals(format variables.Format) []variables.Row {
	return sf.scopes[sf.localsReference].Contents(format)
}

// GetArgs 函数参数
func (sf *StackFrame) GetArgs(format variables.Format) []variables.Row {
	return sf.scopes[sf.argsReference].Contents(format)
}

// Manages 引用是否属于该栈帧
func (sf *StackFrame) Manages(ref int) bool {
	if _, ok := sf.scopes[ref]; ok {
		return true
	}
	_, ok := sf.variableReferences[ref]
	return ok
}

// Container 根据引用获取容器
func (sf *StackFrame) Container(ref int) (*variables.ValueContainer, error) {
	if c, ok := sf.scopes[ref]; ok {
		return c, nil
	}
	if c, ok := sf.variableReferences[ref]; ok {
		return c, nil
	}
	return nil, e.NewInvalidReferenceError(ref)
}

// Get 展开引用
func (sf *StackFrame) Get(ref int, format variables.Format) ([]variables.Row, error) {
	c, err := sf.Container(ref)
	if err != nil {
		return nil, err
	}
	return c.Contents(format), nil
}

// IsWatching 引用是否属于监视表达式
func (sf *StackFrame) IsWatching(ref int) bool {
	_, ok := sf.watchVariableReferences[ref]
	return ok
}

// AddWatchedVariable 为监视表达式创建容器，同一个表达式复用之前的引用
func (sf *StackFrame) AddWatchedVariable(expression string, value debugger.Value, rng *variables.Range) *variables.ValueContainer {
	c := variables.Watch(sf, sf.watchVariables[expression], expression, value, rng)
	if c == nil {
		delete(sf.watchVariables, expression)
		return nil
	}
	sf.watchVariables[expression] = c
	return c
}

// References 栈帧拥有的所有引用
func (sf *StackFrame) References() []int {
	refs := make([]int, 0, len(sf.scopes)+len(sf.variableReferences))
	for ref := range sf.scopes {
		refs = append(refs, ref)
	}
	for ref := range sf.variableReferences {
		refs = append(refs, ref)
	}
	return refs
}

// Release 栈帧被弹出，释放它拥有的引用
func (sf *StackFrame) Release() {
	sf.registry.Release(sf.References()...)
	sf.variableReferences = map[int]*variables.ValueContainer{}
	sf.watchVariableReferences = map[int]*variables.ValueContainer{}
	sf.watchVariables = map[string]*variables.ValueContainer{}
}
