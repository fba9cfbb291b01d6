package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/emirpasic/gods/sets/hashset"
	e "github.com/fansqz/midas-dap/error"
	"github.com/fansqz/midas-dap/protocol"
	"github.com/sirupsen/logrus"
)

// handlerFunc 命令的处理函数，args是descriptor.newArgs创建并解析好的参数
type handlerFunc func(s *Session, args interface{}) (interface{}, error)

// descriptor 命令表中的一项
type descriptor struct {
	command  string
	required []string
	optional []string
	// immediate 不进入控制线程，在读协程上直接执行，只能调用后端线程安全的方法
	immediate bool
	// states 允许执行的会话状态，为空时不限制
	states []string
	// teardown 响应入队之后结束会话
	teardown bool
	newArgs  func() interface{}
	handle   handlerFunc
}

// command 创建一个参数类型为T的命令
func command[T any](name string, handle func(s *Session, args *T) (interface{}, error)) descriptor {
	return descriptor{
		command: name,
		newArgs: func() interface{} { return new(T) },
		handle: func(s *Session, args interface{}) (interface{}, error) {
			return handle(s, args.(*T))
		},
	}
}

func (d descriptor) require(names ...string) descriptor {
	d.required = names
	return d
}

func (d descriptor) accept(names ...string) descriptor {
	d.optional = names
	return d
}

func (d descriptor) in(states ...string) descriptor {
	d.states = states
	return d
}

func (d descriptor) now() descriptor {
	d.immediate = true
	return d
}

func (d descriptor) ends() descriptor {
	d.teardown = true
	return d
}

// decode 校验必填参数并解析参数
func (d *descriptor) decode(request *protocol.Request) (interface{}, error) {
	names, err := request.ArgumentNames()
	if err != nil {
		return nil, e.NewValidationError(d.command, "", "arguments must be an object")
	}
	for _, name := range d.required {
		if _, ok := names[name]; !ok {
			return nil, e.NewValidationError(d.command, name, "required argument is missing")
		}
	}
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		known := hashset.New()
		for _, name := range d.required {
			known.Add(name)
		}
		for _, name := range d.optional {
			known.Add(name)
		}
		for name := range names {
			if !known.Contains(name) {
				logrus.Tracef("[Dispatcher] %s: ignore unknown argument %s", d.command, name)
			}
		}
	}
	args := d.newArgs()
	if len(names) == 0 {
		return args, nil
	}
	if err = json.Unmarshal(request.Arguments, args); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, e.NewValidationError(d.command, typeErr.Field, fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value))
		}
		return nil, e.NewValidationError(d.command, "", err.Error())
	}
	return args, nil
}

// CommandTable 命令名到命令描述的索引
type CommandTable struct {
	descriptors []descriptor
	index       map[string]int
}

func NewCommandTable(descriptors ...descriptor) *CommandTable {
	t := &CommandTable{index: map[string]int{}}
	for _, d := range descriptors {
		t.register(d)
	}
	return t
}

func (t *CommandTable) register(d descriptor) {
	if _, ok := t.index[d.command]; ok {
		panic(fmt.Sprintf("command %s registered twice", d.command))
	}
	t.index[d.command] = len(t.descriptors)
	t.descriptors = append(t.descriptors, d)
}

// Lookup 命令在表中的下标
func (t *CommandTable) Lookup(command string) (int, bool) {
	i, ok := t.index[command]
	return i, ok
}

// Commands 所有命令名
func (t *CommandTable) Commands() []string {
	names := make([]string, 0, len(t.descriptors))
	for _, d := range t.descriptors {
		names = append(names, d.command)
	}
	sort.Strings(names)
	return names
}

// Dispatcher 校验命令，投递到控制线程执行，执行结果放进响应队列
type Dispatcher struct {
	session   *Session
	table     *CommandTable
	control   *ControlThread
	responses *MessageQueue
	// teardown disconnect和terminate的响应入队之后调用
	teardown func()

	cancelMutex sync.Mutex
	// pending 已经投递到控制线程但还没有开始执行的请求序号，只有这些请求可以取消
	pending   *hashset.Set
	cancelled *hashset.Set
}

func NewDispatcher(session *Session, table *CommandTable, responses *MessageQueue) *Dispatcher {
	d := &Dispatcher{
		session:   session,
		table:     table,
		responses: responses,
		pending:   hashset.New(),
		cancelled: hashset.New(),
	}
	d.control = NewControlThread(d.execute)
	session.canceller = d
	return d
}

// Start 启动控制线程
func (d *Dispatcher) Start(ctx context.Context) {
	d.control.Start(ctx)
}

// Stop 控制线程处理完已经投递的命令后退出
func (d *Dispatcher) Stop() {
	d.control.Stop()
}

// Done 控制线程退出时关闭
func (d *Dispatcher) Done() <-chan struct{} {
	return d.control.Done()
}

// OnTeardown 设置会话结束时的回调
func (d *Dispatcher) OnTeardown(fn func()) {
	d.teardown = fn
}

// Dispatch 在读协程上调用，校验失败的命令直接响应，不会进入控制线程
func (d *Dispatcher) Dispatch(request *protocol.Request) {
	index, ok := d.table.Lookup(request.Command)
	if !ok {
		d.fail(request, time.Now(), fmt.Errorf("%w: %s", e.ErrUnknownCommand, request.Command))
		return
	}
	desc := &d.table.descriptors[index]
	args, err := desc.decode(request)
	if err != nil {
		d.fail(request, time.Now(), err)
		return
	}
	j := job{index: index, request: request, args: args}
	if desc.immediate {
		d.execute(j)
		return
	}
	d.cancelMutex.Lock()
	d.pending.Add(request.Seq)
	d.cancelMutex.Unlock()
	if !d.control.Post(j) {
		d.start(request.Seq)
		d.fail(request, time.Now(), e.ErrDebuggerIsClosed)
	}
}

// Reject 无法解析的消息，有序号时响应失败
func (d *Dispatcher) Reject(request *protocol.Request, err error) {
	if request == nil || request.Seq == 0 {
		logrus.Warnf("[Dispatcher] drop malformed message: %v", err)
		return
	}
	d.fail(request, time.Now(), e.NewValidationError(request.Command, "", err.Error()))
}

// Cancel 标记一个在控制线程队列中等待的请求
// 已经开始执行、还没有收到或者不存在的请求都不能取消
func (d *Dispatcher) Cancel(requestSeq int) bool {
	d.cancelMutex.Lock()
	defer d.cancelMutex.Unlock()
	if !d.pending.Contains(requestSeq) {
		return false
	}
	d.cancelled.Add(requestSeq)
	return true
}

// start 请求开始执行，返回它是否已经被取消
func (d *Dispatcher) start(requestSeq int) bool {
	d.cancelMutex.Lock()
	defer d.cancelMutex.Unlock()
	d.pending.Remove(requestSeq)
	if !d.cancelled.Contains(requestSeq) {
		return false
	}
	d.cancelled.Remove(requestSeq)
	return true
}

// execute 执行一条命令，无论成功失败都会有一个响应入队
func (d *Dispatcher) execute(j job) {
	start := time.Now()
	desc := &d.table.descriptors[j.index]
	request := j.request
	if !desc.immediate {
		if d.start(request.Seq) {
			logrus.Infof("[Dispatcher] %s(%d) cancelled before execution", request.Command, request.Seq)
			d.respond(protocol.NewCancelledResponse(request.Seq, request.Command))
			d.session.metrics.observeCommand(request.Command, "cancelled", start)
			return
		}
	}
	if len(desc.states) > 0 && !d.session.status.Is(desc.states...) {
		d.fail(request, start, e.NewSessionStateError(request.Command, d.session.status.Get()))
		return
	}
	body, err := d.invoke(desc, j.args)
	if err != nil {
		d.fail(request, start, err)
	} else {
		d.respond(protocol.NewResponse(request.Seq, request.Command, body))
		d.session.metrics.observeCommand(request.Command, "success", start)
	}
	d.session.metrics.setLiveHandles(d.session.registry.Len())
	if desc.teardown && d.teardown != nil {
		d.teardown()
	}
}

// invoke 处理函数中的panic转换成失败响应
func (d *Dispatcher) invoke(desc *descriptor, args interface{}) (body interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &fatalError{command: desc.command, cause: r}
		}
	}()
	return desc.handle(d.session, args)
}

func (d *Dispatcher) fail(request *protocol.Request, start time.Time, err error) {
	id, status := classify(err)
	if status == "fatal" || status == "error" {
		logrus.Errorf("[Dispatcher] %s(%d) fail, err = %v", request.Command, request.Seq, err)
	} else {
		logrus.Infof("[Dispatcher] %s(%d) rejected: %v", request.Command, request.Seq, err)
	}
	if errors.Is(err, e.ErrUserCancelled) {
		d.respond(protocol.NewCancelledResponse(request.Seq, request.Command))
	} else {
		d.respond(protocol.NewErrorResponse(request.Seq, request.Command, id, err.Error()))
	}
	d.session.metrics.observeCommand(request.Command, status, start)
}

func (d *Dispatcher) respond(response *protocol.Response) {
	if !d.responses.Put(response) {
		logrus.Debugf("[Dispatcher] response queue closed, drop response to %s(%d)", response.Command, response.RequestSeq)
	}
}

// fatalError 处理函数panic
type fatalError struct {
	command string
	cause   interface{}
}

func (f *fatalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", f.command, f.cause)
}

// classify 错误对应的错误编号和指标中的状态
func classify(err error) (int, string) {
	var fatal *fatalError
	switch {
	case errors.Is(err, e.ErrUserCancelled):
		return protocol.ErrorIDUnknown, "cancelled"
	case errors.Is(err, e.ErrValidation):
		return protocol.ErrorIDValidation, "invalid"
	case errors.Is(err, e.ErrInvalidReference):
		return protocol.ErrorIDInvalidReference, "invalid_reference"
	case errors.Is(err, e.ErrBackendRead):
		return protocol.ErrorIDBackendRead, "backend_read"
	case errors.Is(err, e.ErrSessionState):
		return protocol.ErrorIDSessionState, "session_state"
	case errors.Is(err, e.ErrUnknownCommand):
		return protocol.ErrorIDUnknownCommand, "unknown"
	case errors.As(err, &fatal):
		return protocol.ErrorIDUnknown, "fatal"
	}
	return protocol.ErrorIDBackend, "error"
}
