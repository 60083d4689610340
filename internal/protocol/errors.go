package protocol

import "fmt"

// RequestError is a request the relay explicitly rejected.
type RequestError struct {
	Method string
	Code   int
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s rejected: %d %s", e.Method, e.Code, e.Reason)
}
