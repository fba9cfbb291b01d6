package stack

import (
	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/debugger/variables"
	e "github.com/fansqz/midas-dap/error"
	"github.com/sirupsen/logrus"
)

const (
	// lookahead 增量对比时最多采样的栈帧数量
	lookahead = 10
	// maxStackDepth 计算栈深度时最多遍历的层数
	maxStackDepth = 10000
)

// ExecutionContext 一个线程的栈帧缓存
// stack[0]是最内层的栈帧，每次GetFrames都会和后端重新采样的栈帧对比，只包装新出现的栈帧
type ExecutionContext struct {
	backend  debugger.Debugger
	registry *variables.ReferenceUtil
	threadID int

	stack  []*StackFrame
	frames map[int]*StackFrame

	stackDepth int
	depthFrame debugger.Frame

	// 自由监视表达式不属于任何栈帧，线程存在期间一直有效
	floating       map[int]*variables.ValueContainer
	watchVariables map[string]*variables.ValueContainer
}

func NewExecutionContext(backend debugger.Debugger, registry *variables.ReferenceUtil, threadID int) *ExecutionContext {
	return &ExecutionContext{
		backend:        backend,
		registry:       registry,
		threadID:       threadID,
		frames:         map[int]*StackFrame{},
		floating:       map[int]*variables.ValueContainer{},
		watchVariables: map[string]*variables.ValueContainer{},
	}
}

func (ec *ExecutionContext) ThreadID() int {
	return ec.threadID
}

// Stack 当前缓存的栈帧
func (ec *ExecutionContext) Stack() []*StackFrame {
	return ec.stack
}

// GetFrames 获取[start, start+count)范围内的栈帧，count小于等于0时获取剩余的所有栈帧
func (ec *ExecutionContext) GetFrames(start int, count int) ([]FrameDescriptor, error) {
	if start < 0 {
		start = 0
	}
	newest, err := ec.newestFrame()
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		depth, err := ec.depth(newest)
		if err != nil {
			return nil, err
		}
		count = depth - start
	}
	if err = ec.sync(newest); err != nil {
		return nil, err
	}
	if err = ec.extend(start + count); err != nil {
		logrus.Warnf("[ExecutionContext] thread %d extend stack fail, err = %v", ec.threadID, err)
	}
	if start >= len(ec.stack) {
		return []FrameDescriptor{}, nil
	}
	end := start + count
	if end > len(ec.stack) {
		end = len(ec.stack)
	}
	if err = ec.stack[start].frame.Select(); err != nil {
		logrus.Debugf("[ExecutionContext] select frame %d fail, err = %v", start, err)
	}
	descriptors := make([]FrameDescriptor, 0, end-start)
	for _, sf := range ec.stack[start:end] {
		descriptors = append(descriptors, sf.Descriptor())
	}
	return descriptors, nil
}

func (ec *ExecutionContext) newestFrame() (debugger.Frame, error) {
	thread, err := ec.backend.SelectThread(ec.threadID)
	if err != nil {
		return nil, err
	}
	return ec.backend.NewestFrame(thread)
}

// sync 用新采样的栈帧修正缓存
func (ec *ExecutionContext) sync(newest debugger.Frame) error {
	if len(ec.stack) > 0 && ec.stack[0].IsSameFrame(newest) {
		return nil
	}
	sample, err := takeNFrames(newest, lookahead)
	if err != nil && len(sample) == 0 {
		return err
	}
	if x, y, ok := findFirstIdenticalFrames(ec.stack, sample, lookahead); ok {
		// 前x个缓存的栈帧已经返回，采样中前y个栈帧是新调用的
		for _, sf := range ec.stack[:x] {
			ec.drop(sf)
		}
		fresh := make([]*StackFrame, 0, y+len(ec.stack)-x)
		for _, f := range sample[:y] {
			fresh = append(fresh, ec.wrap(f))
		}
		ec.stack = append(fresh, ec.stack[x:]...)
		logrus.Debugf("[ExecutionContext] thread %d spliced stack, popped %d pushed %d", ec.threadID, x, y)
		return nil
	}
	// 采样范围内没有相同的栈帧，缓存不可信，重新构建
	for _, sf := range ec.stack {
		ec.drop(sf)
	}
	ec.stack = make([]*StackFrame, 0, len(sample))
	for _, f := range sample {
		ec.stack = append(ec.stack, ec.wrap(f))
	}
	logrus.Debugf("[ExecutionContext] thread %d rebuilt stack with %d frames", ec.threadID, len(sample))
	return nil
}

// extend 从最外层缓存的栈帧继续向外遍历，直到缓存了n个栈帧
func (ec *ExecutionContext) extend(n int) error {
	for len(ec.stack) > 0 && len(ec.stack) < n {
		older, err := ec.stack[len(ec.stack)-1].frame.Older()
		if err != nil {
			return err
		}
		if older == nil {
			return nil
		}
		ec.stack = append(ec.stack, ec.wrap(older))
	}
	return nil
}

func (ec *ExecutionContext) wrap(frame debugger.Frame) *StackFrame {
	sf := NewStackFrame(ec.registry, ec.threadID, frame)
	ec.frames[sf.FrameID()] = sf
	return sf
}

func (ec *ExecutionContext) drop(sf *StackFrame) {
	delete(ec.frames, sf.FrameID())
	sf.Release()
}

// StackDepth 栈深度，只有最内层栈帧变化时才重新计算
func (ec *ExecutionContext) StackDepth() (int, error) {
	newest, err := ec.newestFrame()
	if err != nil {
		return 0, err
	}
	return ec.depth(newest)
}

func (ec *ExecutionContext) depth(newest debugger.Frame) (int, error) {
	if ec.depthFrame != nil && ec.depthFrame.Equal(newest) {
		return ec.stackDepth, nil
	}
	depth, err := countFrames(newest, maxStackDepth)
	if err != nil {
		return depth, err
	}
	ec.stackDepth = depth
	ec.depthFrame = newest
	return depth, nil
}

// StackFrame 根据栈帧id获取栈帧
func (ec *ExecutionContext) StackFrame(frameID int) (*StackFrame, error) {
	sf, ok := ec.frames[frameID]
	if !ok {
		return nil, e.NewInvalidReferenceError(frameID)
	}
	return sf, nil
}

// Adopt 自由监视表达式的子容器不绑定栈帧
func (ec *ExecutionContext) Adopt(c *variables.ValueContainer) int {
	ref := ec.registry.Allocate(c)
	ec.floating[ref] = c
	return ref
}

func (ec *ExecutionContext) Disown(c *variables.ValueContainer) {
	ec.registry.Release(c.Handle())
	delete(ec.floating, c.Handle())
}

// AddFreeFloatingWatchedVariable 监视表达式挂在线程上，栈帧变化之后仍然有效
func (ec *ExecutionContext) AddFreeFloatingWatchedVariable(expression string, value debugger.Value, rng *variables.Range) *variables.ValueContainer {
	c := variables.Watch(ec, ec.watchVariables[expression], expression, value, rng)
	if c == nil {
		delete(ec.watchVariables, expression)
		return nil
	}
	ec.watchVariables[expression] = c
	return c
}

// ClearWatches 清除自由监视表达式
func (ec *ExecutionContext) ClearWatches() {
	refs := make([]int, 0, len(ec.floating))
	for ref := range ec.floating {
		refs = append(refs, ref)
	}
	ec.registry.Release(refs...)
	ec.floating = map[int]*variables.ValueContainer{}
	ec.watchVariables = map[string]*variables.ValueContainer{}
}

// Release 线程退出，释放所有栈帧和监视表达式
func (ec *ExecutionContext) Release() {
	for _, sf := range ec.stack {
		ec.drop(sf)
	}
	ec.stack = nil
	ec.depthFrame = nil
	ec.ClearWatches()
}
