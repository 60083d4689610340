package signal

import (
	json "github.com/goccy/go-json"
)

// message is the protoo envelope. Exactly one of Request, Response or
// Notification is set.
type message struct {
	Request      bool            `json:"request,omitempty"`
	Response     bool            `json:"response,omitempty"`
	Notification bool            `json:"notification,omitempty"`
	ID           uint32          `json:"id,omitempty"`
	Method       string          `json:"method,omitempty"`
	OK           bool            `json:"ok,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    int             `json:"errorCode,omitempty"`
	ErrorReason  string          `json:"errorReason,omitempty"`
}

func encodeData(data any) (json.RawMessage, error) {
	if data == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(data)
}

func newRequest(id uint32, method string, data any) ([]byte, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(message{Request: true, ID: id, Method: method, Data: raw})
}

func newSuccessResponse(id uint32, data any) ([]byte, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(message{Response: true, ID: id, OK: true, Data: raw})
}

func newErrorResponse(id uint32, code int, reason string) ([]byte, error) {
	return json.Marshal(message{Response: true, ID: id, ErrorCode: code, ErrorReason: reason})
}
