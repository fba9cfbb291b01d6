package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/go-dap"
)

// DecodeError 消息帧完整但是内容无法解析
type DecodeError struct {
	Content []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ReadRequest 读取一个Content-Length分帧的请求
// 分帧错误和io错误意味着连接不可用；DecodeError只影响这一条消息
func ReadRequest(reader *bufio.Reader) (*Request, error) {
	content, err := dap.ReadBaseMessage(reader)
	if err != nil {
		return nil, err
	}
	// 类型错误时其他字段仍然会被解析，调用方可以根据序号响应失败
	request := &Request{}
	if err = json.Unmarshal(content, request); err != nil {
		return request, &DecodeError{Content: content, Err: err}
	}
	if request.Type != "request" || request.Command == "" {
		return request, &DecodeError{Content: content, Err: fmt.Errorf("not a request: type %q command %q", request.Type, request.Command)}
	}
	return request, nil
}

// WriteMessage 序列化并分帧写出一个消息
func WriteMessage(writer io.Writer, message any) error {
	content, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return dap.WriteBaseMessage(writer, content)
}

// WriteRequest 客户端一侧写出请求，测试和命令行工具使用
func WriteRequest(writer io.Writer, seq int, command string, arguments any) error {
	request := &Request{}
	request.Seq = seq
	request.Type = "request"
	request.Command = command
	if arguments != nil {
		raw, err := json.Marshal(arguments)
		if err != nil {
			return err
		}
		request.Arguments = raw
	}
	return WriteMessage(writer, request)
}

// Incoming 客户端一侧读到的响应或者事件
type Incoming struct {
	dap.ProtocolMessage
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Command    string          `json:"command,omitempty"`
	Message    string          `json:"message,omitempty"`
	Event      string          `json:"event,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// ReadIncoming 客户端一侧读取一个响应或者事件
func ReadIncoming(reader *bufio.Reader) (*Incoming, error) {
	content, err := dap.ReadBaseMessage(reader)
	if err != nil {
		return nil, err
	}
	incoming := &Incoming{}
	if err = json.Unmarshal(content, incoming); err != nil {
		return nil, &DecodeError{Content: content, Err: err}
	}
	return incoming, nil
}
