package server

import (
	"sort"
	"sync/atomic"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/debugger/breakpoints"
	"github.com/fansqz/midas-dap/debugger/stack"
	"github.com/fansqz/midas-dap/debugger/variables"
	e "github.com/fansqz/midas-dap/error"
	"github.com/fansqz/midas-dap/utils"
	"github.com/sirupsen/logrus"
)

// Options 会话的默认参数，launch和attach的参数可以覆盖
type Options struct {
	StopOnEntry         bool
	SingleThreadControl bool
}

type canceller interface {
	Cancel(requestSeq int) bool
}

// Session 一次调试会话的全部状态
// 引用表、执行上下文和断点集合只在控制线程上读写
type Session struct {
	ID      string
	backend debugger.Debugger
	options Options
	status  *utils.StatusManager
	metrics *Metrics

	registry    *variables.ReferenceUtil
	contexts    map[int]*stack.ExecutionContext
	breakpoints *breakpoints.BreakpointSet
	format      variables.Format
	// checkpoints 检查点编号到*debugger.Checkpoint，按编号排序
	checkpoints *treemap.Map

	events    *EventBus
	console   *Console
	canceller canceller

	// currentThread 最近一次停止的线程，自由监视表达式挂在它的执行上下文上
	currentThread atomic.Int64
}

func NewSession(backend debugger.Debugger, options Options, metrics *Metrics) *Session {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	s := &Session{
		ID:          utils.GetUUID(),
		backend:     backend,
		options:     options,
		status:      utils.NewStatusManager(),
		metrics:     metrics,
		registry:    variables.NewReferenceUtil(),
		contexts:    map[int]*stack.ExecutionContext{},
		breakpoints: breakpoints.NewBreakpointSet(backend),
		checkpoints: treemap.NewWithIntComparator(),
	}
	s.events = NewEventBus(s)
	return s
}

// Status 会话状态
func (s *Session) Status() string {
	return s.status.Get()
}

// Events 会话的事件总线
func (s *Session) Events() *EventBus {
	return s.events
}

// executionContext 获取线程的执行上下文，不存在时创建
func (s *Session) executionContext(threadID int) *stack.ExecutionContext {
	ec, ok := s.contexts[threadID]
	if !ok {
		ec = stack.NewExecutionContext(s.backend, s.registry, threadID)
		s.contexts[threadID] = ec
	}
	return ec
}

// dropContext 线程退出，释放它的所有引用
func (s *Session) dropContext(threadID int) {
	ec, ok := s.contexts[threadID]
	if !ok {
		return
	}
	ec.Release()
	delete(s.contexts, threadID)
	s.metrics.setLiveHandles(s.registry.Len())
}

// frame 根据栈帧id找到栈帧，栈帧id就是它的局部变量作用域的引用
func (s *Session) frame(frameID int) (*stack.StackFrame, error) {
	key, ok := s.registry.LookupKey(frameID)
	if !ok {
		return nil, e.NewInvalidReferenceError(frameID)
	}
	ec, ok := s.contexts[key.ThreadID]
	if !ok {
		return nil, e.NewInvalidReferenceError(frameID)
	}
	return ec.StackFrame(key.FrameID)
}

// container 根据引用找到容器
// 属于栈帧的引用通过ReferenceKey找到栈帧，自由监视表达式直接从引用表获取
func (s *Session) container(ref int) (*variables.ValueContainer, error) {
	if key, ok := s.registry.LookupKey(ref); ok {
		sf, err := s.frame(key.FrameID)
		if err != nil {
			return nil, e.NewInvalidReferenceError(ref)
		}
		return sf.Container(ref)
	}
	return s.registry.Resolve(ref)
}

// threadOrCurrent threadID为0时使用最近停止的线程，还没有停止过时使用第一个线程
func (s *Session) threadOrCurrent(threadID int) (int, error) {
	if threadID != 0 {
		return threadID, nil
	}
	if current := int(s.currentThread.Load()); current != 0 {
		return current, nil
	}
	threads, err := s.backend.Threads()
	if err != nil {
		return 0, err
	}
	if len(threads) == 0 {
		return 0, e.ErrNoExecutionContext
	}
	return threads[0].ID, nil
}

// singleThread 请求没有指定时使用会话的单线程控制模式
func (s *Session) singleThread(requested bool) bool {
	return requested || s.options.SingleThreadControl
}

// control 执行一个执行控制命令
// 日志断点和不满足命中条件的断点停下之后，事件总线会要求继续运行，这里循环处理而不是在回调中递归
// resume为nil时重新执行原来的命令，单步命令继续单步，单线程的继续仍然只运行该线程
func (s *Session) control(fn func() error, resume func() error) error {
	if resume == nil {
		resume = fn
	}
	if err := fn(); err != nil {
		return err
	}
	for s.events.takeResume() {
		logrus.Debugf("[Session] resume after silent stop")
		if err := resume(); err != nil {
			return err
		}
	}
	return nil
}

// resumeAll 跳转到事件或者检查点的命令不能重复执行，静默停止之后继续运行
func (s *Session) resumeAll() error {
	return s.backend.Continue(0, s.singleThread(false))
}

// syncCheckpoints 用后端的检查点列表刷新
func (s *Session) syncCheckpoints() error {
	list, err := s.backend.Checkpoints()
	if err != nil {
		return err
	}
	s.checkpoints.Clear()
	for _, cp := range list {
		s.checkpoints.Put(cp.ID, cp)
	}
	return nil
}

// checkpointList 按编号排序的检查点
func (s *Session) checkpointList() []*debugger.Checkpoint {
	list := make([]*debugger.Checkpoint, 0, s.checkpoints.Size())
	for _, v := range s.checkpoints.Values() {
		list = append(list, v.(*debugger.Checkpoint))
	}
	return list
}

// reset 清空所有执行上下文和引用，客户端手里的引用全部失效
func (s *Session) reset() {
	ids := make([]int, 0, len(s.contexts))
	for id := range s.contexts {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s.contexts[id].Release()
	}
	s.contexts = map[int]*stack.ExecutionContext{}
	s.registry.Reset()
	s.metrics.setLiveHandles(0)
}

// close 结束会话，释放终端
func (s *Session) close() {
	s.status.Set(utils.Finish)
	if s.console != nil {
		s.console.Close()
		s.console = nil
	}
}
