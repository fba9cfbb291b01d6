package main

import (
	"io"
	"os"

	"github.com/fansqz/midas-dap/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var logFile *os.File

// SetupLogger 配置日志级别、格式和输出位置
func SetupLogger(cfg *config.Config) error {
	level := logrus.InfoLevel
	if cfg.Dev {
		level = logrus.DebugLevel
	}
	if cfg.Trace {
		level = logrus.TraceLevel
	}
	logrus.SetLevel(level)

	var out io.Writer = os.Stderr
	colors := term.IsTerminal(int(os.Stderr.Fd()))
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = f
		out = f
		colors = false
	}
	logrus.SetOutput(out)

	if cfg.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return nil
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:   colors,
		DisableColors: !colors,
		FullTimestamp: true,
	})
	return nil
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
