package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/homekv/lib/home"
)

// --------------------------------------------------------------------------
// Message Types
// --------------------------------------------------------------------------

// MessageType is the "action" of a tab channel message
type MessageType string

const (
	// requests (tab -> server)
	MsgTLoadData   MessageType = "loadData"
	MsgTStoreData  MessageType = "storeData"
	MsgTDeleteData MessageType = "deleteData"
	MsgTSwitchData MessageType = "switchData"

	// responses and pushes (server -> tab)
	MsgTLoadedData MessageType = home.EnvelopeAction
	MsgTAttached   MessageType = "attached"
	MsgTDone       MessageType = "done"
	MsgTError      MessageType = "error"
)

// IsRequest reports whether a tab may send messages of this type
func (t MessageType) IsRequest() bool {
	switch t {
	case MsgTLoadData, MsgTStoreData, MsgTDeleteData, MsgTSwitchData:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message on the tab channel, in both directions.
// Which fields are used depends on the type of message.
type Message struct {
	Source string      `json:"source,omitempty"` // Set for all server messages
	Action MessageType `json:"action"`

	// RequestID is chosen by the tab. The direct reply to a request carries
	// the same ID; broadcasts never carry one.
	RequestID string `json:"requestId,omitempty"`

	// Request only fields
	Data     json.RawMessage `json:"data,omitempty"`     // Used for: storeData
	Location string          `json:"location,omitempty"` // Used for: deleteData, switchData

	// Response only fields
	Payload *home.Payload `json:"payload,omitempty"` // Used for: loadedData
	TabID   string        `json:"tabId,omitempty"`   // Used for: attached
	Ok      *bool         `json:"ok,omitempty"`      // Used for: done
	Err     string        `json:"error,omitempty"`   // Used for: error
}

// Envelope returns the Envelope carried by a loadedData message
func (m *Message) Envelope() (home.Envelope, error) {
	if m.Action != MsgTLoadedData || m.Payload == nil {
		return home.Envelope{}, fmt.Errorf("message of type %q carries no envelope", m.Action)
	}
	return home.Envelope{
		Source:  m.Source,
		Action:  string(m.Action),
		Payload: *m.Payload,
	}, nil
}

// ClientData decodes the data of a storeData request
func (m *Message) ClientData() (*home.ClientData, error) {
	data := home.NewClientData()
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return data, nil
	}
	if err := json.Unmarshal(m.Data, data); err != nil {
		return nil, err
	}
	return data, nil
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewLoadDataRequest creates a new loadData request
func NewLoadDataRequest(requestID string) *Message {
	return &Message{
		Action:    MsgTLoadData,
		RequestID: requestID,
	}
}

// NewStoreDataRequest creates a new storeData request
func NewStoreDataRequest(requestID string, data json.RawMessage) *Message {
	return &Message{
		Action:    MsgTStoreData,
		RequestID: requestID,
		Data:      data,
	}
}

// NewDeleteDataRequest creates a new deleteData request, an empty location
// deletes the current root
func NewDeleteDataRequest(requestID, location string) *Message {
	return &Message{
		Action:    MsgTDeleteData,
		RequestID: requestID,
		Location:  location,
	}
}

// NewSwitchDataRequest creates a new switchData request
func NewSwitchDataRequest(requestID, location string) *Message {
	return &Message{
		Action:    MsgTSwitchData,
		RequestID: requestID,
		Location:  location,
	}
}

// NewEnvelopeMessage wraps an Envelope, requestID is empty for broadcasts
func NewEnvelopeMessage(env home.Envelope, requestID string) *Message {
	payload := env.Payload
	return &Message{
		Source:    env.Source,
		Action:    MessageType(env.Action),
		RequestID: requestID,
		Payload:   &payload,
	}
}

// NewAttachedMessage creates the first message sent to a new tab
func NewAttachedMessage(tab home.TabID) *Message {
	return &Message{
		Source: home.EnvelopeSource,
		Action: MsgTAttached,
		TabID:  string(tab),
	}
}

// NewDoneResponse acknowledges a request whose result is broadcast
func NewDoneResponse(requestID string, ok bool) *Message {
	return &Message{
		Source:    home.EnvelopeSource,
		Action:    MsgTDone,
		RequestID: requestID,
		Ok:        &ok,
	}
}

// NewErrorResponse creates a new error response
func NewErrorResponse(requestID string, err error) *Message {
	return &Message{
		Source:    home.EnvelopeSource,
		Action:    MsgTError,
		RequestID: requestID,
		Err:       err.Error(),
	}
}
