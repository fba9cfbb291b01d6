package server

import (
	"context"
	"runtime/debug"

	"github.com/fansqz/midas-dap/protocol"
	"github.com/fansqz/midas-dap/utils/gosync"
	"github.com/sirupsen/logrus"
)

// job 投递到控制线程的一条命令
// 只携带命令表中的下标和解析好的参数，不捕获任何循环变量
type job struct {
	index   int
	request *protocol.Request
	args    interface{}
}

// ControlThread 所有后端调用都在这一个协程上按投递顺序执行
type ControlThread struct {
	jobs    *MessageQueue
	execute func(job)
	done    chan struct{}
}

func NewControlThread(execute func(job)) *ControlThread {
	return &ControlThread{
		jobs:    NewMessageQueue(),
		execute: execute,
		done:    make(chan struct{}),
	}
}

// Post 投递命令，控制线程已经停止时返回false
func (c *ControlThread) Post(j job) bool {
	return c.jobs.Put(j)
}

// Start 启动控制线程，Stop之后处理完剩余的命令再退出
func (c *ControlThread) Start(ctx context.Context) {
	gosync.Go(ctx, func(ctx context.Context) {
		defer close(c.done)
		for {
			item, ok := c.jobs.Get()
			if !ok {
				return
			}
			c.run(item.(job))
		}
	})
}

// run 单个命令的panic不能让控制线程退出
func (c *ControlThread) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[ControlThread] %s panic: %v\n%s", j.request.Command, r, debug.Stack())
		}
	}()
	c.execute(j)
}

// Stop 不再接收新命令
func (c *ControlThread) Stop() {
	c.jobs.Close()
}

// Done 控制线程退出时关闭
func (c *ControlThread) Done() <-chan struct{} {
	return c.done
}

// Pending 等待执行的命令数量
func (c *ControlThread) Pending() int {
	return c.jobs.Len()
}
