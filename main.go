package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fansqz/midas-dap/config"
	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/debugger/scripted_debugger"
	e "github.com/fansqz/midas-dap/error"
	"github.com/fansqz/midas-dap/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// 定义版本号
const Version = "1.0.1"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "midas-dap",
		Short:         "Debug adapter between an IDE and a native debugger backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand(), newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", Version)
		},
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one debug session over a command channel and an event channel",
		Args:  cobra.NoArgs,
	}
	flags := config.RegisterFlags(cmd.Flags())
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := flags.Load()
		if err != nil {
			return err
		}
		if err = SetupLogger(cfg); err != nil {
			return err
		}
		defer CloseLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	}
	return cmd
}

// serve 等待客户端连接两个通道，然后运行一个调试会话
func serve(ctx context.Context, cfg *config.Config) error {
	backend, err := createDebugger(cfg.Backend)
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	metrics := server.NewMetrics(registry)
	if cfg.Metrics.Address != "" {
		startMetrics(cfg.Metrics.Address, registry)
	}

	commands, events, err := acceptChannels(ctx, cfg)
	if err != nil {
		return err
	}
	session := server.NewSession(backend, server.Options{
		StopOnEntry:         cfg.Session.StopOnEntry,
		SingleThreadControl: cfg.Session.SingleThreadControl,
	}, metrics)
	logrus.Infof("[main] session %s started", session.ID)
	return server.NewProtocolServer(commands, events, session).Serve(ctx)
}

// createDebugger 创建调试后端
func createDebugger(cfg config.BackendConfig) (debugger.Debugger, error) {
	switch constants.BackendType(cfg.Name) {
	case constants.ScriptedBackend:
		scenario := scripted_debugger.DefaultScenario()
		if cfg.Scenario != "" {
			var err error
			if scenario, err = scripted_debugger.LoadScenario(cfg.Scenario); err != nil {
				return nil, err
			}
		}
		return scripted_debugger.NewScriptedDebugger(scenario), nil
	}
	return nil, fmt.Errorf("%w: %s", e.ErrBackendNotSupported, cfg.Name)
}

func startMetrics(address string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	go func() {
		logrus.Infof("[main] metrics listening at %s", address)
		if err := http.ListenAndServe(address, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("[main] metrics server fail, err = %v", err)
		}
	}()
}
