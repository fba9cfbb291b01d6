package protocol

import (
	"github.com/google/go-dap"
)

// Event 事件信封
type Event struct {
	dap.Event
	Body any `json:"body,omitempty"`
}

func NewEvent(event string, body any) *Event {
	return &Event{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{
				Seq:  0,
				Type: "event",
			},
			Event: event,
		},
		Body: body,
	}
}

// Name 事件名
func (e *Event) Name() string {
	return e.Event.Event
}
