package protocol

import (
	"encoding/json"

	"github.com/google/go-dap"
)

// Request 请求信封，参数在分发时根据命令解析
type Request struct {
	dap.Request
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ArgumentNames 请求中出现的参数名，用于校验必填参数
func (r *Request) ArgumentNames() (map[string]json.RawMessage, error) {
	names := map[string]json.RawMessage{}
	if len(r.Arguments) == 0 || string(r.Arguments) == "null" {
		return names, nil
	}
	if err := json.Unmarshal(r.Arguments, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// LaunchArguments 启动被调试程序
type LaunchArguments struct {
	Program             string   `json:"program"`
	Args                []string `json:"args,omitempty"`
	Cwd                 string   `json:"cwd,omitempty"`
	StopOnEntry         *bool    `json:"stopOnEntry,omitempty"`
	SingleThreadControl *bool    `json:"singleThreadControl,omitempty"`
	// Console internalConsole时为被调试程序分配一个伪终端，输出转成output事件
	Console string `json:"console,omitempty"`
}

// AttachArguments 附加到一个已经运行的进程或者远程目标
type AttachArguments struct {
	Pid                 int    `json:"pid,omitempty"`
	Target              string `json:"target,omitempty"`
	SingleThreadControl *bool  `json:"singleThreadControl,omitempty"`
}

// RunToEventArguments 时间旅行后端运行到执行历史中的某个事件
type RunToEventArguments struct {
	Event int `json:"event"`
}

// CheckpointArguments 检查点编号
type CheckpointArguments struct {
	ID int `json:"id"`
}

// ThreadArguments 只需要线程id的自定义命令
type ThreadArguments struct {
	ThreadId int `json:"threadId"`
}

// StepArguments next、stepIn、stepOut、stepBack和reverseContinue共用的参数
type StepArguments struct {
	ThreadId     int  `json:"threadId"`
	SingleThread bool `json:"singleThread,omitempty"`
}
