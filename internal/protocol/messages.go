package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies bridge websocket payload variants.
type MessageType string

const (
	TypeMessageUpsert MessageType = "message_upsert"
	TypeSendMessage   MessageType = "send_message"
	TypeSendResult    MessageType = "send_result"
	TypeSystemEvent   MessageType = "system_event"
	TypeErrorEvent    MessageType = "error_event"
)

// GroupSuffix marks a group conversation identity.
const GroupSuffix = "@g.us"

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type MessageKey struct {
	ID          string `json:"id,omitempty"`
	RemoteJID   string `json:"remote_jid"`
	Participant string `json:"participant,omitempty"`
	FromMe      bool   `json:"from_me,omitempty"`
}

type ExtendedTextMessage struct {
	Text string `json:"text"`
}

type ImageMessage struct {
	Caption string `json:"caption,omitempty"`
}

type MessageContent struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extended_text_message,omitempty"`
	ImageMessage        *ImageMessage        `json:"image_message,omitempty"`
}

// MessageUpsert is an inbound chat message relayed by the bridge.
type MessageUpsert struct {
	Type         MessageType     `json:"type"`
	Key          MessageKey      `json:"key"`
	Message      *MessageContent `json:"message,omitempty"`
	GroupSubject string          `json:"group_subject,omitempty"`
	PushName     string          `json:"push_name,omitempty"`
	TSMs         int64           `json:"ts_ms,omitempty"`
}

// SendMessage asks the bridge to deliver text to a conversation.
type SendMessage struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id"`
	To        string      `json:"to"`
	Text      string      `json:"text"`
	Mentions  []string    `json:"mentions,omitempty"`
}

// SendResult acknowledges a SendMessage. Error is empty on success.
type SendResult struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id"`
	Error     string      `json:"error,omitempty"`
}

type SystemEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// Text collapses the supported payload shapes into one string. Plain text
// wins over extended text, which wins over an image caption.
func (m MessageUpsert) Text() string {
	if m.Message == nil {
		return ""
	}
	switch {
	case m.Message.Conversation != "":
		return m.Message.Conversation
	case m.Message.ExtendedTextMessage != nil && m.Message.ExtendedTextMessage.Text != "":
		return m.Message.ExtendedTextMessage.Text
	case m.Message.ImageMessage != nil:
		return m.Message.ImageMessage.Caption
	default:
		return ""
	}
}

// Sender is the identity of the author: the participant in a group, or the
// conversation itself in a direct chat.
func (m MessageUpsert) Sender() string {
	if p := strings.TrimSpace(m.Key.Participant); p != "" {
		return p
	}
	return m.Key.RemoteJID
}

// IsGroup reports whether the message was posted in a group conversation.
func (m MessageUpsert) IsGroup() bool {
	return strings.HasSuffix(m.Key.RemoteJID, GroupSuffix)
}

// ParseBridgeMessage decodes a frame sent by the bridge.
func ParseBridgeMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeMessageUpsert:
		var msg MessageUpsert
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Key.RemoteJID) == "" {
			return nil, errors.New("invalid message_upsert: missing key.remote_jid")
		}
		return msg, nil
	case TypeSendResult:
		var msg SendResult
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.RequestID == "" {
			return nil, errors.New("invalid send_result: missing request_id")
		}
		return msg, nil
	case TypeSystemEvent:
		var msg SystemEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, env.Type)
	}
}
