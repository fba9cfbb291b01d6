package scripted_debugger

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario 描述一个被调试进程：线程、栈帧、变量、寄存器、内存以及执行控制命令依次产生的停止事件
type Scenario struct {
	Threads        []*ThreadSpec        `yaml:"threads"`
	RegisterGroups []*RegisterGroupSpec `yaml:"registerGroups"`
	Memory         []*MemorySpec        `yaml:"memory"`
	// Sources 可以解析断点的源文件，栈帧中出现的文件默认可以解析
	Sources   []string     `yaml:"sources"`
	Functions []string     `yaml:"functions"`
	Stops     []*StopSpec  `yaml:"stops"`
	Statics   []*ValueSpec `yaml:"statics"`
	ExitCode  int          `yaml:"exitCode"`
}

// ThreadSpec 线程和它的调用栈，Frames从最内层开始
type ThreadSpec struct {
	ID     int          `yaml:"id"`
	Name   string       `yaml:"name"`
	Frames []*FrameSpec `yaml:"frames"`
}

// FrameSpec 栈帧，ID相同的栈帧被认为是同一个物理栈帧
type FrameSpec struct {
	ID        string       `yaml:"id"`
	Function  string       `yaml:"function"`
	Path      string       `yaml:"path"`
	Line      int          `yaml:"line"`
	PC        uint64       `yaml:"pc"`
	Blocks    []*BlockSpec `yaml:"blocks"`
	Registers []*ValueSpec `yaml:"registers"`
}

// BlockSpec 词法块，Blocks从最内层开始，Function标记函数的顶层块
type BlockSpec struct {
	Function bool         `yaml:"function"`
	Symbols  []*ValueSpec `yaml:"symbols"`
}

// ValueSpec 一个有类型的值
type ValueSpec struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Kind  string `yaml:"kind"` // primitive, struct, pointer, array
	Value string `yaml:"value"`
	// Address 值所在的地址，0表示没有地址
	Address      uint64 `yaml:"address"`
	Argument     bool   `yaml:"argument"`
	OptimizedOut bool   `yaml:"optimizedOut"`
	// SymbolOptimizedOut 符号的存储被优化掉，不会出现在作用域中
	SymbolOptimizedOut bool `yaml:"symbolOptimizedOut"`
	// Unreadable 非空时读取该值失败
	Unreadable string          `yaml:"unreadable"`
	BaseClass  bool            `yaml:"baseClass"`
	Static     bool            `yaml:"static"`
	Fields     []*ValueSpec    `yaml:"fields"`
	Target     *ValueSpec      `yaml:"target"`
	Visualizer *VisualizerSpec `yaml:"visualizer"`
}

// VisualizerSpec 可视化器，Children为空时只展示String
type VisualizerSpec struct {
	Children []*ValueSpec `yaml:"children"`
	String   string       `yaml:"string"`
}

// RegisterGroupSpec 寄存器组以及寄存器的默认值
type RegisterGroupSpec struct {
	Name      string       `yaml:"name"`
	Registers []*ValueSpec `yaml:"registers"`
}

// MemorySpec 一段可读的内存，Data为16进制字符串
type MemorySpec struct {
	Address uint64 `yaml:"address"`
	Data    string `yaml:"data"`
}

// LocationSpec 停止的位置，用来匹配断点、观察点和捕获点
type LocationSpec struct {
	Path       string `yaml:"path"`
	Line       int    `yaml:"line"`
	Function   string `yaml:"function"`
	Address    uint64 `yaml:"address"`
	Expression string `yaml:"expression"`
	Exception  string `yaml:"exception"`
}

// StopSpec 一次执行控制之后的停止
// At不为空时只有该位置有断点才会停止，Continue会跳过没有断点的位置；单步命令总是停在下一个StopSpec
type StopSpec struct {
	Reason string        `yaml:"reason"`
	Thread int           `yaml:"thread"`
	At     *LocationSpec `yaml:"at"`
	// Threads 停止时各个线程的调用栈，没有出现的线程保持不变
	Threads []*ThreadSpec `yaml:"threads"`
	// ExitedThreads 在这次停止之前退出的线程
	ExitedThreads []int  `yaml:"exitedThreads"`
	Output        string `yaml:"output"`
	Exit          bool   `yaml:"exit"`
}

//go:embed scenarios/demo.yaml
var demoScenario []byte

// DefaultScenario 内置的演示场景，每次调用都返回新的副本
func DefaultScenario() *Scenario {
	scenario, err := ParseScenario(demoScenario)
	if err != nil {
		panic(err)
	}
	return scenario
}

// ParseScenario 解析yaml格式的场景
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := &Scenario{}
	if err := yaml.Unmarshal(data, scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := scenario.validate(); err != nil {
		return nil, err
	}
	return scenario, nil
}

// LoadScenario 从文件读取场景
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

func (s *Scenario) validate() error {
	if len(s.Threads) == 0 {
		return fmt.Errorf("scenario has no threads")
	}
	ids := map[int]bool{}
	for _, t := range s.Threads {
		if ids[t.ID] {
			return fmt.Errorf("duplicate thread id %d", t.ID)
		}
		ids[t.ID] = true
		if err := validateFrames(t.Frames); err != nil {
			return fmt.Errorf("thread %d: %w", t.ID, err)
		}
	}
	for _, m := range s.Memory {
		if _, err := hex.DecodeString(m.Data); err != nil {
			return fmt.Errorf("memory at 0x%x: %w", m.Address, err)
		}
	}
	for i, stop := range s.Stops {
		for _, t := range stop.Threads {
			if err := validateFrames(t.Frames); err != nil {
				return fmt.Errorf("stop %d thread %d: %w", i, t.ID, err)
			}
		}
	}
	return nil
}

func validateFrames(frames []*FrameSpec) error {
	seen := map[string]bool{}
	for _, f := range frames {
		if f.ID == "" {
			return fmt.Errorf("frame %s has no id", f.Function)
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate frame id %s", f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}
