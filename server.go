package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/fansqz/midas-dap/config"
	"github.com/fansqz/midas-dap/utils"
	"github.com/sirupsen/logrus"
)

// acceptChannels 等待命令通道和事件通道连接
// 命令通道先连接，事件通道在EventAcceptTimeout内没有连接时放弃
func acceptChannels(ctx context.Context, cfg *config.Config) (net.Conn, net.Conn, error) {
	if cfg.TCPAddress != "" {
		listener, err := net.Listen("tcp", cfg.TCPAddress)
		if err != nil {
			return nil, nil, err
		}
		defer listener.Close()
		fmt.Printf("started listening at: %s\n", listener.Addr().String())
		return acceptPair(ctx, cfg, listener, listener)
	}

	commandListener, err := listenUnix(cfg.CommandSocket)
	if err != nil {
		return nil, nil, err
	}
	defer commandListener.Close()
	eventListener, err := listenUnix(cfg.EventSocket)
	if err != nil {
		return nil, nil, err
	}
	defer eventListener.Close()
	fmt.Printf("started listening at: %s %s\n", cfg.CommandSocket, cfg.EventSocket)
	return acceptPair(ctx, cfg, commandListener, eventListener)
}

func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return net.Listen("unix", path)
}

func acceptPair(ctx context.Context, cfg *config.Config, commandListener net.Listener, eventListener net.Listener) (net.Conn, net.Conn, error) {
	// ctx结束时关闭监听，阻塞的Accept会返回
	stop := context.AfterFunc(ctx, func() {
		_ = commandListener.Close()
		_ = eventListener.Close()
	})
	defer stop()

	commands, err := commandListener.Accept()
	if err != nil {
		return nil, nil, fmt.Errorf("accept command channel: %w", err)
	}
	logrus.Infof("[main] command channel connected from %s", commands.RemoteAddr())

	timeout := utils.NewTimeoutManager()
	timeout.Start(ctx, cfg.EventAcceptTimeout, func() {
		logrus.Warnf("[main] event channel not connected within %v", cfg.EventAcceptTimeout)
		_ = eventListener.Close()
	})
	events, err := eventListener.Accept()
	timeout.Cancel()
	if err != nil {
		_ = commands.Close()
		return nil, nil, fmt.Errorf("accept event channel: %w", err)
	}
	logrus.Infof("[main] event channel connected from %s", events.RemoteAddr())
	return commands, events, nil
}
