package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ServerError means the server answered with a non-2xx status.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server responded with status %d: %s", e.StatusCode, e.Body)
}

// RemoteValidationError is a rejected payload carrying per-field messages.
type RemoteValidationError struct {
	StatusCode int
	Body       string
	Fields     []FieldErrors
}

// FieldErrors holds the messages for one field, in server order.
type FieldErrors struct {
	Field    string
	Messages []string
}

// Messages flattens every field message, keeping the order the server sent them.
func (e *RemoteValidationError) Messages() []string {
	var out []string
	for _, f := range e.Fields {
		out = append(out, f.Messages...)
	}
	return out
}

func (e *RemoteValidationError) Error() string {
	return fmt.Sprintf("validation failed (status %d): %s", e.StatusCode, strings.Join(e.Messages(), "; "))
}

// NetworkError means the request went out but no response came back.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "no response from server: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// ClientError means the request could not be built or sent, or its
// response could not be read.
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string { return "request failed: " + e.Err.Error() }

func (e *ClientError) Unwrap() error { return e.Err }

// parseFieldErrors reads {"errors": {field: [msg...]}} keeping key order.
// It returns nil when body has no usable errors object.
func parseFieldErrors(body []byte) []FieldErrors {
	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.Errors))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}

	var fields []FieldErrors
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil
		}
		msgs := decodeMessages(raw)
		if len(msgs) == 0 {
			continue
		}
		fields = append(fields, FieldErrors{Field: key, Messages: msgs})
	}
	return fields
}

// decodeMessages accepts either a list of strings or a single string.
func decodeMessages(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}
