package lsp

import "encoding/json"

// jsonrpcVersion is stamped on every outgoing message.
const jsonrpcVersion = "2.0"

// Message is a JSON-RPC 2.0 message: a request (id + method), a response
// (id + result or error), or a notification (method, no id).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RemoteError    `json:"error,omitempty"`
}

// IsResponse reports whether the message is a reply to a request we sent.
func (m *Message) IsResponse() bool {
	return m.ID != nil && m.Method == ""
}

// IsNotification reports whether the message is an unsolicited push from
// the daemon.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// newRequest builds a request message, marshaling params eagerly so encode
// failures surface before any bytes hit the wire.
func newRequest(id int64, method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: jsonrpcVersion, ID: &id, Method: method, Params: raw}, nil
}

// newNotification builds a notification message (no id, no reply expected).
func newNotification(method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: jsonrpcVersion, Method: method, Params: raw}, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		// The daemon expects a params object even when a method takes none.
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(params)
}
