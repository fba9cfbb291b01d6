package debugger

import (
	"github.com/fansqz/midas-dap/constants"
)

// StartOption 启动调试的参数
type StartOption struct {
	Program string
	Args    []string
	Cwd     string
	// StopOnEntry 在入口处停止
	StopOnEntry bool
	// SingleThreadControl 单线程控制模式，单步时只有当前线程运行
	SingleThreadControl bool
	// TTY 被调试程序使用的终端，为空时使用后端自己的输出
	TTY string
	// Callback 事件回调
	Callback NotificationCallback
}

// AttachOption 附加调试的参数
type AttachOption struct {
	Pid    int
	Target string
	// Callback 事件回调
	Callback NotificationCallback
}

// AccessType 观察点的访问类型
type AccessType string

const (
	AccessRead      AccessType = "read"
	AccessWrite     AccessType = "write"
	AccessReadWrite AccessType = "readWrite"
)

// Thread 线程
type Thread struct {
	ID   int
	Name string
}

// Location 栈帧所在的源码位置
type Location struct {
	Path string
	Line int
	PC   uint64
}

// Symbol 词法块中的符号
type Symbol struct {
	Name string
	Type string
	// IsArgument 是否是函数参数
	IsArgument bool
	// OptimizedOut 存储已经被编译器优化掉
	OptimizedOut bool
}

// Block 词法块
type Block struct {
	Symbols []Symbol
	// Function 是否是函数的顶层块
	Function bool
}

// RegisterGroup 寄存器组
type RegisterGroup struct {
	Name      string
	Registers []string
}

// Checkpoint 检查点
type Checkpoint struct {
	ID   int    `json:"id"`
	When string `json:"when"`
	Path string `json:"path"`
	Line int    `json:"line"`
}

// StoppedEvent
// 该event表明，由于某些原因，被调试进程的执行已经停止。
// 这可能是由先前设置的断点、完成的步进请求、执行调试器语句等引起的。
type StoppedEvent struct {
	Reason   constants.StoppedReasonType // 停止执行的原因
	ThreadID int
	// Breakpoints 命中的断点编号
	Breakpoints       []int
	AllThreadsStopped bool
	Description       string
}

func NewStoppedEvent(reason constants.StoppedReasonType, threadID int, breakpoints ...int) *StoppedEvent {
	return &StoppedEvent{
		Reason:            reason,
		ThreadID:          threadID,
		Breakpoints:       breakpoints,
		AllThreadsStopped: true,
	}
}

// ContinuedEvent
// 该event表明debug的执行已经继续。
type ContinuedEvent struct {
	ThreadID            int
	AllThreadsContinued bool
}

func NewContinuedEvent(threadID int, all bool) *ContinuedEvent {
	return &ContinuedEvent{
		ThreadID:            threadID,
		AllThreadsContinued: all,
	}
}

// ThreadEvent 线程启动或退出
type ThreadEvent struct {
	Reason   constants.ThreadReasonType
	ThreadID int
}

func NewThreadEvent(reason constants.ThreadReasonType, threadID int) *ThreadEvent {
	return &ThreadEvent{
		Reason:   reason,
		ThreadID: threadID,
	}
}

// BreakpointEvent 断点事件
// 该event指示有关断点的某些信息已更改。
type BreakpointEvent struct {
	Reason     constants.BreakpointReasonType
	Breakpoint Breakpoint
}

func NewBreakpointEvent(reason constants.BreakpointReasonType, breakpoint Breakpoint) *BreakpointEvent {
	return &BreakpointEvent{
		Reason:     reason,
		Breakpoint: breakpoint,
	}
}

// OutputEvent
// 用户程序输出
type OutputEvent struct {
	Category string
	Output   string // 输出内容
}

func NewOutputEvent(category string, output string) *OutputEvent {
	return &OutputEvent{
		Category: category,
		Output:   output,
	}
}

// ExitedEvent
// 该event表明被调试对象已经退出并返回exit code。但是并不意味着调试会话结束
type ExitedEvent struct {
	ExitCode int
	Message  string
}

func NewExitedEvent(code int, message string) *ExitedEvent {
	return &ExitedEvent{
		ExitCode: code,
		Message:  message,
	}
}
