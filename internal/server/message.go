package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zeusync/factorysim/internal/core/control"
	"github.com/zeusync/factorysim/internal/core/engine"
	"github.com/zeusync/factorysim/internal/core/model"
	"github.com/zeusync/factorysim/internal/core/notice"
	"github.com/zeusync/factorysim/pkg/generic"
)

// MessageType tags every frame on the WebSocket.
type MessageType string

// Server to client.
const (
	MessageWelcome  MessageType = "welcome"
	MessageSnapshot MessageType = "snapshot"
	MessageNotice   MessageType = "notice"
	MessageError    MessageType = "error"
)

// Client to server.
const (
	MessageAction   MessageType = "action"
	MessageSelect   MessageType = "select"
	MessageDeselect MessageType = "deselect"
	MessageOperate  MessageType = "operate"
)

// ClientMessage is a command sent by a client.
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Action  *control.Action `json:"action,omitempty"`
	Target  model.EntityID  `json:"target,omitempty"`
	Control string          `json:"control,omitempty"`
	Value   float64         `json:"value,omitempty"`
}

// ServerMessage is a frame pushed to a client.
type ServerMessage struct {
	Type     MessageType      `json:"type"`
	ClientID string           `json:"clientId,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Notice   *notice.Notice   `json:"notice,omitempty"`
	Error    string           `json:"error,omitempty"`
}

var buffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// encode returns a frame owned by the caller.
func encode(msg ServerMessage) ([]byte, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		return nil, err
	}
	return bytes.Clone(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

func decode(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return msg, nil
}

// apply routes msg to the engine.
func apply(eng Engine, msg ClientMessage) error {
	switch msg.Type {
	case MessageAction:
		if msg.Action == nil {
			return fmt.Errorf("%w: action missing", ErrInvalidMessage)
		}
		return eng.Dispatch(*msg.Action)
	case MessageSelect:
		return eng.Select(msg.Target)
	case MessageDeselect:
		eng.Deselect()
		return nil
	case MessageOperate:
		if msg.Control == "" {
			return fmt.Errorf("%w: control missing", ErrInvalidMessage)
		}
		eng.Operate(msg.Control, msg.Value)
		return nil
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidMessage, msg.Type)
	}
}
