package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/utils"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config 服务的全部配置，会话开始时读取一次
type Config struct {
	// CommandSocket 命令通道的unix socket，请求和响应都走这个通道
	CommandSocket string `yaml:"commandSocket"`
	// EventSocket 事件通道的unix socket
	EventSocket string `yaml:"eventSocket"`
	// TCPAddress 不为空时监听tcp，先后接受的两个连接分别是命令通道和事件通道
	TCPAddress string `yaml:"tcpAddress"`
	// EventAcceptTimeout 命令通道连接之后等待事件通道的时间
	EventAcceptTimeout time.Duration `yaml:"eventAcceptTimeout"`

	Dev   bool `yaml:"dev"`
	Trace bool `yaml:"trace"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Backend BackendConfig `yaml:"backend"`
	Session SessionConfig `yaml:"session"`
}

type LogConfig struct {
	// File 为空时输出到stderr
	File string `yaml:"file"`
	// Format text或者json
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Address 为空时不提供指标接口
	Address string `yaml:"address"`
}

type BackendConfig struct {
	Name string `yaml:"name"`
	// Scenario scripted后端的场景文件，为空时使用内置的演示场景
	Scenario string `yaml:"scenario"`
}

// SessionConfig launch和attach没有指定时使用的默认值
type SessionConfig struct {
	StopOnEntry         bool `yaml:"stopOnEntry"`
	SingleThreadControl bool `yaml:"singleThreadControl"`
}

// Default 默认配置，socket路径每次生成新的
func Default() *Config {
	commands, events := utils.GetSocketPaths(os.TempDir())
	return &Config{
		CommandSocket:      commands,
		EventSocket:        events,
		EventAcceptTimeout: 10 * time.Second,
		Log: LogConfig{
			Format: "text",
		},
		Backend: BackendConfig{
			Name: string(constants.ScriptedBackend),
		},
	}
}

// Load 读取配置文件，path为空时只使用默认配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate 检查配置
func (c *Config) Validate() error {
	var errs []string
	if c.TCPAddress == "" {
		if c.CommandSocket == "" || c.EventSocket == "" {
			errs = append(errs, "commandSocket and eventSocket are required without tcpAddress")
		} else if c.CommandSocket == c.EventSocket {
			errs = append(errs, "commandSocket and eventSocket must differ")
		}
	}
	if c.EventAcceptTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("eventAcceptTimeout must be positive, got %v", c.EventAcceptTimeout))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}
	if c.Backend.Name != string(constants.ScriptedBackend) {
		errs = append(errs, fmt.Sprintf("backend.name %q is not supported", c.Backend.Name))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Flags 命令行参数，只有显式设置的参数覆盖配置文件
type Flags struct {
	fs *pflag.FlagSet

	ConfigFile string
	values     Config
}

// RegisterFlags 在fs上注册所有参数
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "Path to a YAML config file")
	fs.StringVar(&f.values.CommandSocket, "command-socket", "", "Unix socket for requests and responses")
	fs.StringVar(&f.values.EventSocket, "event-socket", "", "Unix socket for events")
	fs.StringVar(&f.values.TCPAddress, "tcp", "", "Listen on a TCP address instead of unix sockets")
	fs.DurationVar(&f.values.EventAcceptTimeout, "event-accept-timeout", 0, "How long to wait for the event channel")
	fs.BoolVar(&f.values.Dev, "dev", false, "Debug level logging")
	fs.BoolVar(&f.values.Trace, "trace", false, "Trace level logging, including every message")
	fs.StringVar(&f.values.Log.File, "log-file", "", "Write logs to this file")
	fs.StringVar(&f.values.Log.Format, "log-format", "", "Log format: text or json")
	fs.StringVar(&f.values.Metrics.Address, "metrics-address", "", "Serve prometheus metrics on this address")
	fs.StringVar(&f.values.Backend.Name, "backend", "", "Debugger backend")
	fs.StringVar(&f.values.Backend.Scenario, "scenario", "", "Scenario file for the scripted backend")
	fs.BoolVar(&f.values.Session.StopOnEntry, "stop-on-entry", false, "Stop at the program entry by default")
	fs.BoolVar(&f.values.Session.SingleThreadControl, "single-thread", false, "Resume and step only the selected thread by default")
	return f
}

// Load 读取配置文件并应用命令行参数
func (f *Flags) Load() (*Config, error) {
	cfg, err := Load(f.ConfigFile)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *Flags) apply(cfg *Config) {
	set := func(name string, apply func()) {
		if f.fs.Changed(name) {
			apply()
		}
	}
	set("command-socket", func() { cfg.CommandSocket = f.values.CommandSocket })
	set("event-socket", func() { cfg.EventSocket = f.values.EventSocket })
	set("tcp", func() { cfg.TCPAddress = f.values.TCPAddress })
	set("event-accept-timeout", func() { cfg.EventAcceptTimeout = f.values.EventAcceptTimeout })
	set("dev", func() { cfg.Dev = f.values.Dev })
	set("trace", func() { cfg.Trace = f.values.Trace })
	set("log-file", func() { cfg.Log.File = f.values.Log.File })
	set("log-format", func() { cfg.Log.Format = f.values.Log.Format })
	set("metrics-address", func() { cfg.Metrics.Address = f.values.Metrics.Address })
	set("backend", func() { cfg.Backend.Name = f.values.Backend.Name })
	set("scenario", func() { cfg.Backend.Scenario = f.values.Backend.Scenario })
	set("stop-on-entry", func() { cfg.Session.StopOnEntry = f.values.Session.StopOnEntry })
	set("single-thread", func() { cfg.Session.SingleThreadControl = f.values.Session.SingleThreadControl })
}
