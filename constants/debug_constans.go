package constants

type DebugMessageType string

const (
	RequestMessage  DebugMessageType = "request"
	ResponseMessage DebugMessageType = "response"
	EventMessage    DebugMessageType = "event"
)

// DebugEventType 事件类型
type DebugEventType string

const (
	InitializedEvent        DebugEventType = "initialized"
	BreakpointEvent         DebugEventType = "breakpoint"
	OutputEvent             DebugEventType = "output"
	StoppedEvent            DebugEventType = "stopped"
	ContinuedEvent          DebugEventType = "continued"
	ThreadEvent             DebugEventType = "thread"
	ExitedEvent             DebugEventType = "exited"
	TerminatedEvent         DebugEventType = "terminated"
	CheckpointsUpdatedEvent DebugEventType = "checkpointsUpdated"
)

// BreakpointReasonType 断点改变类型
type BreakpointReasonType string

const (
	ChangeType  BreakpointReasonType = "changed"
	NewType     BreakpointReasonType = "new"
	RemovedType BreakpointReasonType = "removed"
)

// ThreadReasonType 线程事件类型
type ThreadReasonType string

const (
	ThreadStarted ThreadReasonType = "started"
	ThreadExited  ThreadReasonType = "exited"
)

// StoppedReasonType 程序停止类型
type StoppedReasonType string

const (
	BreakpointStopped         StoppedReasonType = "breakpoint"
	FunctionBreakpointStopped StoppedReasonType = "function breakpoint"
	DataBreakpointStopped     StoppedReasonType = "data breakpoint"
	ExceptionStopped          StoppedReasonType = "exception"
	StepStopped               StoppedReasonType = "step"
	PauseStopped              StoppedReasonType = "pause"
	EntryStopped              StoppedReasonType = "entry"
	ExitedNormally            StoppedReasonType = "exited-normally"
)

// ScopeName 作用域名称
type ScopeName string

// Locals: 当前栈帧内所有词法块中的局部变量，内层块的同名变量会遮蔽外层的。
// Args: 函数参数。
// Register: 寄存器组，每个寄存器组一个作用域。
// Static: 存在于静态存储区域的静态变量，读取代价较高，由客户端按需展开。
const (
	LocalsScope   ScopeName = "Locals"
	ArgsScope     ScopeName = "Args"
	RegisterScope ScopeName = "Register"
	StaticScope   ScopeName = "Statics"
)

// Output event categories.
const (
	ConsoleOutput = "console"
	StdoutOutput  = "stdout"
	StderrOutput  = "stderr"
)
