package debugger

import (
	"context"
)

// NotificationCallback 后端生命周期回调，event为debug_objects中定义的事件对象
type NotificationCallback func(interface{})

// Debugger
// 原生调试后端的协作接口
// 除Interrupt以外，所有方法都只能在控制线程上调用，后端本身不保证并发安全
type Debugger interface {
	// Start 启动被调试程序
	Start(ctx context.Context, option *StartOption) error
	// Attach 附加到一个已经存在的进程
	Attach(ctx context.Context, option *AttachOption) error
	// Terminate 终止调试
	Terminate(ctx context.Context) error

	// Threads 枚举所有线程
	Threads() ([]Thread, error)
	// SelectThread 切换后端焦点到某个线程
	SelectThread(id int) (Thread, error)
	// NewestFrame 线程最内层的栈帧
	NewestFrame(thread Thread) (Frame, error)
	// ReadMemory 读取原始内存
	ReadMemory(address uint64, count int) ([]byte, error)
	// Evaluate 在某个栈帧上下文中求值表达式，frame为nil时使用当前选中的栈帧
	Evaluate(frame Frame, expression string) (Value, error)

	// CreateSourceBreakpoint 根据文件和行号创建断点
	CreateSourceBreakpoint(path string, line int) (Breakpoint, error)
	// CreateFunctionBreakpoint 根据函数名称创建断点
	CreateFunctionBreakpoint(name string) (Breakpoint, error)
	// CreateAddressBreakpoint 根据指令地址创建断点
	CreateAddressBreakpoint(address uint64) (Breakpoint, error)
	// CreateWatchpoint 根据数据表达式创建观察点
	CreateWatchpoint(expression string, access AccessType) (Breakpoint, error)
	// CreateCatchpoint 创建异常捕获点
	CreateCatchpoint(filter string) (Breakpoint, error)
	// DeleteBreakpoint 删除断点
	DeleteBreakpoint(bp Breakpoint) error

	// Next 下一步，不会进入函数内部
	Next(threadID int, singleThread bool) error
	// StepIn 下一步，会进入函数内部
	StepIn(threadID int, singleThread bool) error
	// StepOut 单步退出
	StepOut(threadID int, singleThread bool) error
	// Continue 继续执行，threadID为0时继续所有线程
	Continue(threadID int, singleThread bool) error
	// ReverseContinue 反向继续执行
	ReverseContinue(threadID int) error
	// ReverseStep 反向单步
	ReverseStep(threadID int) error
	// ReverseFinish 反向执行到函数调用处
	ReverseFinish(threadID int) error
	// RunToEvent 运行到某个执行历史中的事件
	RunToEvent(event int) error
	// Interrupt 中断正在运行的程序
	// 唯一允许在控制线程之外调用的方法，产生的停止事件原因为pause，不携带断点编号
	Interrupt() error

	// SetCheckpoint 在当前位置设置检查点
	SetCheckpoint() (*Checkpoint, error)
	// RestartCheckpoint 回到某个检查点
	RestartCheckpoint(id int) error
	// DeleteCheckpoint 删除检查点
	DeleteCheckpoint(id int) error
	// Checkpoints 当前所有检查点
	Checkpoints() ([]*Checkpoint, error)
}
