package server

import (
	"path/filepath"
	"sync/atomic"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/debugger/breakpoints"
	"github.com/fansqz/midas-dap/protocol"
	"github.com/fansqz/midas-dap/utils"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

// EventBus 把后端的生命周期回调转换成协议事件，放进事件队列
// 回调在触发它的协程上同步执行，事件一定先于触发它的命令的响应入队
type EventBus struct {
	session *Session
	queue   *MessageQueue
	// resume 停在日志断点或者不满足命中条件的断点上，需要继续运行
	resume atomic.Bool
}

func NewEventBus(session *Session) *EventBus {
	return &EventBus{
		session: session,
		queue:   NewMessageQueue(),
	}
}

// Queue 事件写协程消费的队列
func (b *EventBus) Queue() *MessageQueue {
	return b.queue
}

// Emit 发送一个事件
func (b *EventBus) Emit(event constants.DebugEventType, body interface{}) {
	if !b.queue.Put(protocol.NewEvent(string(event), body)) {
		logrus.Debugf("[EventBus] queue closed, drop %s event", event)
		return
	}
	b.session.metrics.observeEvent(string(event))
}

func (b *EventBus) takeResume() bool {
	return b.resume.Swap(false)
}

// Notify 后端的事件回调
func (b *EventBus) Notify(event interface{}) {
	switch ev := event.(type) {
	case *debugger.StoppedEvent:
		b.onStopped(ev)
	case *debugger.ContinuedEvent:
		b.session.status.Transit(utils.Running, utils.Stopped, utils.Running)
		b.Emit(constants.ContinuedEvent, dap.ContinuedEventBody{
			ThreadId:            ev.ThreadID,
			AllThreadsContinued: ev.AllThreadsContinued,
		})
	case *debugger.ThreadEvent:
		if ev.Reason == constants.ThreadExited {
			b.session.dropContext(ev.ThreadID)
			b.session.currentThread.CompareAndSwap(int64(ev.ThreadID), 0)
		}
		b.Emit(constants.ThreadEvent, dap.ThreadEventBody{
			Reason:   string(ev.Reason),
			ThreadId: ev.ThreadID,
		})
	case *debugger.BreakpointEvent:
		b.onBreakpoint(ev)
	case *debugger.OutputEvent:
		b.Output(ev.Category, ev.Output)
	case *debugger.ExitedEvent:
		b.session.status.Set(utils.Finish)
		b.Emit(constants.ExitedEvent, dap.ExitedEventBody{ExitCode: ev.ExitCode})
		b.Emit(constants.TerminatedEvent, dap.TerminatedEventBody{})
	default:
		logrus.Warnf("[EventBus] unknown backend event %T", event)
	}
}

// Output 发送output事件
func (b *EventBus) Output(category string, output string) {
	b.Emit(constants.OutputEvent, dap.OutputEventBody{
		Category: category,
		Output:   output,
	})
}

// onStopped 停在客户端的断点上时先交给断点集合判断是否真正停止
// 暂停产生的停止可能在读协程上到达，不访问断点集合
func (b *EventBus) onStopped(ev *debugger.StoppedEvent) {
	if ev.Reason == constants.PauseStopped && len(ev.Breakpoints) > 0 {
		logrus.Debugf("[EventBus] ignore breakpoints %v of pause stop", ev.Breakpoints)
		ev.Breakpoints = nil
	}
	if len(ev.Breakpoints) > 0 {
		decision := b.session.breakpoints.OnStop(b.stoppedFrame(ev.ThreadID), ev.Breakpoints)
		for _, message := range decision.Logs {
			b.Output(constants.ConsoleOutput, message+"\n")
		}
		if decision.Resume {
			b.resume.Store(true)
			return
		}
	}
	b.session.status.Transit(utils.Stopped, utils.Running, utils.Stopped)
	b.session.currentThread.Store(int64(ev.ThreadID))
	b.Emit(constants.StoppedEvent, dap.StoppedEventBody{
		Reason:            string(ev.Reason),
		Description:       ev.Description,
		ThreadId:          ev.ThreadID,
		AllThreadsStopped: ev.AllThreadsStopped,
		HitBreakpointIds:  ev.Breakpoints,
	})
}

func (b *EventBus) stoppedFrame(threadID int) debugger.Frame {
	thread, err := b.session.backend.SelectThread(threadID)
	if err != nil {
		logrus.Debugf("[EventBus] select stopped thread %d fail, err = %v", threadID, err)
		return nil
	}
	frame, err := b.session.backend.NewestFrame(thread)
	if err != nil {
		logrus.Debugf("[EventBus] newest frame of thread %d fail, err = %v", threadID, err)
		return nil
	}
	return frame
}

func (b *EventBus) onBreakpoint(ev *debugger.BreakpointEvent) {
	var bp dap.Breakpoint
	if result, ok := b.session.breakpoints.Describe(ev.Breakpoint.Number()); ok {
		bp = toDapBreakpoint(result)
	} else {
		// 不是客户端设置的断点，直接使用后端的状态
		bp = dap.Breakpoint{Id: ev.Breakpoint.Number(), Verified: !ev.Breakpoint.Pending()}
		if loc, ok := ev.Breakpoint.Location(); ok {
			bp.Line = loc.Line
			bp.Source = sourceOf(loc.Path)
		}
	}
	b.Emit(constants.BreakpointEvent, dap.BreakpointEventBody{
		Reason:     string(ev.Reason),
		Breakpoint: bp,
	})
}

func toDapBreakpoint(result breakpoints.Result) dap.Breakpoint {
	bp := dap.Breakpoint{
		Id:       result.ID,
		Verified: result.Verified,
		Message:  result.Message,
		Line:     result.Line,
		Source:   sourceOf(result.Path),
	}
	if result.Address != 0 {
		bp.InstructionReference = utils.FormatAddress(result.Address)
	}
	return bp
}

func sourceOf(path string) *dap.Source {
	if path == "" {
		return nil
	}
	return &dap.Source{Name: filepath.Base(path), Path: path}
}
