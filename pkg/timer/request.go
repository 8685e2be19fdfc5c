package timer

import (
	"encoding/json"
	"fmt"
)

// Request is one decoded client command.
type Request struct {
	Command Command
	// Value is the raw HHMMSS payload of a set command.
	Value string
}

// wireRequest is the client-to-server message. Exactly one of the fields
// is expected; action wins when both are present.
type wireRequest struct {
	Action *string `json:"action,omitempty"`
	Set    *string `json:"set,omitempty"`
}

// ParseRequest decodes {"action": "..."} or {"set": "HHMMSS"}.
// Invalid JSON yields ErrMalformedRequest, any other shape ErrUnknownCommand.
// The set value is not validated here.
func ParseRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	if w.Action != nil {
		cmd, err := ParseCommand(*w.Action)
		if err != nil {
			return Request{}, err
		}
		return Request{Command: cmd}, nil
	}
	if w.Set != nil {
		return Request{Command: CmdSet, Value: *w.Set}, nil
	}
	return Request{}, fmt.Errorf("%w: expected action or set field", ErrUnknownCommand)
}

// MarshalJSON encodes the request in wire form.
func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Command {
	case CmdStart, CmdPause, CmdResume, CmdStop:
		action := r.Command.String()
		return json.Marshal(wireRequest{Action: &action})
	case CmdSet:
		value := r.Value
		return json.Marshal(wireRequest{Set: &value})
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, r.Command)
	}
}

// UnmarshalJSON is ParseRequest.
func (r *Request) UnmarshalJSON(data []byte) error {
	req, err := ParseRequest(data)
	if err != nil {
		return err
	}
	*r = req
	return nil
}
