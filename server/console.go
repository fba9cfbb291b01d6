package server

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/creack/pty"
	"github.com/fansqz/midas-dap/utils/gosync"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Console 为被调试程序分配的伪终端，程序的输出转成output事件
type Console struct {
	ptmx    *os.File
	tty     *os.File
	state   *term.State
	once    sync.Once
	stopped chan struct{}
}

// OpenConsole 打开一个伪终端，从设备设置为raw模式，输出不做换行转换
func OpenConsole() (*Console, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, err
	}
	state, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, err
	}
	return &Console{ptmx: ptmx, tty: tty, state: state, stopped: make(chan struct{})}, nil
}

// TTY 被调试程序使用的终端设备路径
func (c *Console) TTY() string {
	return c.tty.Name()
}

// Pump 持续读取终端输出，直到终端关闭
func (c *Console) Pump(ctx context.Context, emit func(output string)) {
	gosync.Go(ctx, func(ctx context.Context) {
		defer close(c.stopped)
		buf := make([]byte, 4096)
		for {
			n, err := c.ptmx.Read(buf)
			if n > 0 {
				emit(string(buf[:n]))
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
					logrus.Debugf("[Console] read pty fail, err = %v", err)
				}
				return
			}
		}
	})
}

// Done Pump读到终端关闭之后关闭
func (c *Console) Done() <-chan struct{} {
	return c.stopped
}

// Close 恢复终端模式并关闭
func (c *Console) Close() {
	c.once.Do(func() {
		if err := term.Restore(int(c.tty.Fd()), c.state); err != nil {
			logrus.Debugf("[Console] restore tty fail, err = %v", err)
		}
		_ = c.tty.Close()
		_ = c.ptmx.Close()
	})
}
