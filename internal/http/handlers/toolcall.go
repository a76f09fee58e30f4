package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 1 << 20

// MsgInvalidFormat is the 400 message for envelopes without tool calls.
const MsgInvalidFormat = "Invalid request format: missing 'message' or 'toolCalls'"

// ----- Voice agent tool-call envelope -----

// ToolCallRequest is the body the voice agent platform posts when one of our
// tools is invoked.
type ToolCallRequest struct {
	Message *ToolCallMessage `json:"message"`
}

// ToolCallMessage carries the tool invocations for one agent turn.
type ToolCallMessage struct {
	ToolCalls []ToolCall `json:"toolCalls"`
}

// ToolCall is a single tool invocation. ID must be echoed in the result.
type ToolCall struct {
	ID       string           `json:"id"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the tool and its arguments.
type ToolCallFunction struct {
	Name      string        `json:"name"`
	Arguments ToolArguments `json:"arguments"`
}

// ToolArguments are the caller details the agent collected.
type ToolArguments struct {
	UserSelectedSlot  string
	UserSuggestedSlot string
	MobileNumber      string
	PhoneToText       string
	FirstName         string
	LastName          string
}

// UnmarshalJSON accepts the arguments as an object or as a JSON-encoded
// string. Non-string scalar values are stringified.
func (a *ToolArguments) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		encoded = strings.TrimSpace(encoded)
		if encoded == "" {
			return nil
		}
		data = []byte(encoded)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tool arguments: %w", err)
	}
	a.UserSelectedSlot = argString(raw["userSelectedSlot"])
	a.UserSuggestedSlot = argString(raw["userSuggestedSlot"])
	a.MobileNumber = argString(raw["mobileNumber"])
	a.PhoneToText = argString(raw["phoneToText"])
	a.FirstName = argString(raw["firstName"])
	a.LastName = argString(raw["lastName"])
	return nil
}

func argString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// HasSlot reports whether the caller named a slot in either form.
func (a ToolArguments) HasSlot() bool {
	return a.UserSelectedSlot != "" || a.UserSuggestedSlot != ""
}

// ToolCallResponse wraps tool results for the agent platform.
type ToolCallResponse struct {
	Results []ToolCallResult `json:"results"`
}

// ToolCallResult is either a slot list or a message the agent reads out.
type ToolCallResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     any    `json:"result"`
}

// RequestError is a malformed inbound webhook.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// decodeToolCall reads the envelope and returns its first tool call.
func decodeToolCall(r *http.Request) (*ToolCall, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &RequestError{Status: http.StatusBadRequest, Message: "Unable to read request body"}
	}
	if len(body) > maxBodyBytes {
		return nil, &RequestError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
	}

	var req ToolCallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{Status: http.StatusBadRequest, Message: "Invalid JSON body"}
	}
	if req.Message == nil || len(req.Message.ToolCalls) == 0 {
		return nil, &RequestError{Status: http.StatusBadRequest, Message: MsgInvalidFormat}
	}
	return &req.Message.ToolCalls[0], nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
