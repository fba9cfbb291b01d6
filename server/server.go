package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fansqz/midas-dap/protocol"
	"github.com/fansqz/midas-dap/utils/gosync"
	"github.com/sirupsen/logrus"
)

var aLongTimeAgo = time.Unix(1, 0)

// ProtocolServer 持有命令和事件两个连接
// 读协程解析命令交给Dispatcher，响应写协程和事件写协程分别消费两个队列
type ProtocolServer struct {
	commands net.Conn
	events   net.Conn

	session    *Session
	dispatcher *Dispatcher
	responses  *MessageQueue

	// run 会话结束之后置为false，不会再变回true
	run    atomic.Bool
	seq    atomic.Int64
	once   sync.Once
	wg     sync.WaitGroup
	closed chan struct{}
}

func NewProtocolServer(commands net.Conn, events net.Conn, session *Session) *ProtocolServer {
	s := &ProtocolServer{
		commands:  commands,
		events:    events,
		session:   session,
		responses: NewMessageQueue(),
		closed:    make(chan struct{}),
	}
	s.dispatcher = NewDispatcher(session, DefaultCommandTable(), s.responses)
	s.dispatcher.OnTeardown(s.Stop)
	return s
}

// Serve 处理命令直到客户端断开或者会话结束
func (s *ProtocolServer) Serve(ctx context.Context) error {
	s.run.Store(true)
	s.dispatcher.Start(ctx)
	s.wg.Add(2)
	gosync.Go(ctx, func(ctx context.Context) {
		defer s.wg.Done()
		s.drain("response", s.responses, s.commands)
	})
	gosync.Go(ctx, func(ctx context.Context) {
		defer s.wg.Done()
		s.drain("event", s.session.events.Queue(), s.events)
	})
	gosync.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.closed:
		}
	})
	defer close(s.closed)

	err := s.read()
	s.Stop()
	<-s.dispatcher.Done()
	s.responses.Close()
	s.wg.Wait()
	_ = s.commands.Close()
	_ = s.events.Close()
	logrus.Infof("[ProtocolServer] session %s closed", s.session.ID)
	return err
}

// read 读协程，分帧错误和连接错误结束会话，单条消息解析失败只影响这一条
func (s *ProtocolServer) read() error {
	reader := bufio.NewReader(s.commands)
	for s.run.Load() {
		request, err := protocol.ReadRequest(reader)
		if err != nil {
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				s.dispatcher.Reject(request, err)
				continue
			}
			if !s.run.Load() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logrus.Errorf("[ProtocolServer] read command fail, err = %v", err)
			return err
		}
		logrus.Tracef("[ProtocolServer] <- %s(%d)", request.Command, request.Seq)
		s.dispatcher.Dispatch(request)
	}
	return nil
}

// drain 写协程，队列关闭并且消息写完之后退出
func (s *ProtocolServer) drain(name string, queue *MessageQueue, conn net.Conn) {
	writer := bufio.NewWriter(conn)
	for {
		item, ok := queue.Get()
		if !ok {
			return
		}
		if err := s.write(writer, item); err != nil {
			logrus.Warnf("[ProtocolServer] write %s fail, err = %v", name, err)
			s.Stop()
			return
		}
	}
}

func (s *ProtocolServer) write(writer *bufio.Writer, item interface{}) error {
	seq := int(s.seq.Add(1))
	switch message := item.(type) {
	case *protocol.Response:
		message.Seq = seq
		logrus.Tracef("[ProtocolServer] -> %s(%d) success=%v", message.Command, message.RequestSeq, message.Success)
	case *protocol.Event:
		message.Seq = seq
		logrus.Tracef("[ProtocolServer] -> event %s", message.Name())
	}
	if err := protocol.WriteMessage(writer, item); err != nil {
		return err
	}
	return writer.Flush()
}

// Stop 结束会话：不再读取命令，已经入队的响应和事件写完之后关闭连接
func (s *ProtocolServer) Stop() {
	s.once.Do(func() {
		s.run.Store(false)
		s.dispatcher.Stop()
		s.session.events.Queue().Close()
		// 读协程可能阻塞在读取上
		if err := s.commands.SetReadDeadline(aLongTimeAgo); err != nil {
			logrus.Debugf("[ProtocolServer] set read deadline fail, err = %v", err)
		}
	})
}
