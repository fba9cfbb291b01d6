package protocol

import (
	"github.com/google/go-dap"
)

// 错误响应中的错误编号
const (
	ErrorIDUnknown          = 1000
	ErrorIDValidation       = 1001
	ErrorIDInvalidReference = 1002
	ErrorIDBackendRead      = 1003
	ErrorIDSessionState     = 1004
	ErrorIDUnknownCommand   = 1005
	ErrorIDBackend          = 1010
)

// Response 响应信封
type Response struct {
	dap.Response
	Body any `json:"body,omitempty"`
}

// ErrorBody 失败响应的body
type ErrorBody struct {
	Error *dap.ErrorMessage `json:"error,omitempty"`
}

func NewResponse(requestSeq int, command string, body any) *Response {
	return &Response{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{
				Seq:  0,
				Type: "response",
			},
			Command:    command,
			RequestSeq: requestSeq,
			Success:    true,
		},
		Body: body,
	}
}

func NewErrorResponse(requestSeq int, command string, id int, message string) *Response {
	r := NewResponse(requestSeq, command, nil)
	r.Success = false
	r.Message = message
	r.Body = &ErrorBody{Error: &dap.ErrorMessage{Id: id, Format: message}}
	return r
}

// NewCancelledResponse 被取消的请求只有message，没有错误body
func NewCancelledResponse(requestSeq int, command string) *Response {
	r := NewResponse(requestSeq, command, nil)
	r.Success = false
	r.Message = "cancelled"
	return r
}

// DataBreakpointInfoBody dataBreakpointInfo的响应
type DataBreakpointInfoBody struct {
	DataId      *string  `json:"dataId"`
	Description string   `json:"description"`
	AccessTypes []string `json:"accessTypes,omitempty"`
	CanPersist  bool     `json:"canPersist,omitempty"`
}

// Checkpoint 时间旅行检查点
type Checkpoint struct {
	ID   int    `json:"id"`
	When string `json:"when"`
	Path string `json:"path,omitempty"`
	Line int    `json:"line,omitempty"`
}

// CheckpointsBody checkpoints命令的响应和checkpointsUpdated事件的body
type CheckpointsBody struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// ToggleHexBody toggle-hex的响应
type ToggleHexBody struct {
	Hex bool `json:"hex"`
}
