package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidBody marks a /send body that is not a JSON object of scalar fields.
var ErrInvalidBody = errors.New("invalid request body")

// OutboundMessageRequest is the caller-facing payload of POST /send. It binds from
// JSON or urlencoded forms; all four fields are required.
type OutboundMessageRequest struct {
	PhoneNumberID string `form:"phone_number_id"`
	To            string `form:"to"`
	Text          string `form:"text"`
	AccessToken   string `form:"access_token"`
}

// DecodeOutboundJSON fills an OutboundMessageRequest from a JSON object. Keys must
// match exactly. Numbers are kept as their literal text; null, false and 0 count as
// absent.
func DecodeOutboundJSON(body []byte) (OutboundMessageRequest, error) {
	var req OutboundMessageRequest

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	targets := []struct {
		key string
		dst *string
	}{
		{"phone_number_id", &req.PhoneNumberID},
		{"to", &req.To},
		{"text", &req.Text},
		{"access_token", &req.AccessToken},
	}
	for _, t := range targets {
		raw, ok := fields[t.key]
		if !ok {
			continue
		}
		value, err := scalarText(raw)
		if err != nil {
			return OutboundMessageRequest{}, fmt.Errorf("%w: field %s: %v", ErrInvalidBody, t.key, err)
		}
		*t.dst = value
	}

	return req, nil
}

func scalarText(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}

	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		if !val {
			return "", nil
		}
	case json.Number:
		if f, err := val.Float64(); err == nil && f == 0 {
			return "", nil
		}
		return val.String(), nil
	}
	return "", fmt.Errorf("unsupported value %s", raw)
}

// MissingFields lists the names of required fields that are empty.
func (r OutboundMessageRequest) MissingFields() []string {
	var missing []string
	if r.PhoneNumberID == "" {
		missing = append(missing, "phone_number_id")
	}
	if r.To == "" {
		missing = append(missing, "to")
	}
	if r.Text == "" {
		missing = append(missing, "text")
	}
	if r.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	return missing
}

// SendResult is returned after the provider accepted a message.
type SendResult struct {
	MessageID string
	Data      json.RawMessage
}
