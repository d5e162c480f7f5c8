package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/wa-relay/internal/config"
)

// ErrMalformedResponse is returned when the Cloud API accepted a request but the
// response body did not carry a message id.
var ErrMalformedResponse = errors.New("whatsapp response did not include a message id")

// Client exposes WhatsApp Cloud API operations used by the application.
type Client interface {
	SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendTextMessageResponse, error)
}

// APIClient is a resty-backed implementation of Client. It holds no credentials; the
// bearer token travels with every request.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a WhatsApp API client using the provided configuration values.
// Resty's own warnings are routed through logger.
func NewClient(cfg config.WhatsAppConfig, logger *zap.Logger) *APIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetLogger(logger.Sugar())

	return &APIClient{httpClient: restyClient}
}

// SendTextMessageRequest represents a plain text message to a single recipient.
type SendTextMessageRequest struct {
	PhoneNumberID string
	AccessToken   string
	To            string
	Body          string
}

// SendTextMessageResponse carries the first message id and the untouched response body.
type SendTextMessageResponse struct {
	MessageID string
	Raw       json.RawMessage
}

type textMessagePayload struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textContent `json:"text"`
}

type textContent struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// APIError is a non-2xx answer from the Cloud API.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d", e.StatusCode)
}

// Detail returns what should be shown to a caller: the "error" member of the
// response when it holds a truthy value, otherwise a status description.
func (e *APIError) Detail() any {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Body, &fields); err == nil {
		if raw, ok := fields["error"]; ok && !isFalsy(raw) {
			return raw
		}
	}
	return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
}

// isFalsy reports whether raw is null, false, "" or a numeric zero.
func isFalsy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	case float64:
		return val == 0
	}
	return false
}

func (c *APIClient) SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendTextMessageResponse, error) {
	payload := textMessagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               req.To,
		Type:             "text",
		Text:             textContent{Body: req.Body},
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(req.AccessToken).
		SetPathParam("phoneNumberID", req.PhoneNumberID).
		SetBody(payload).
		Post("/{phoneNumberID}/messages")
	if err != nil {
		return nil, fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.Body()}
	}

	raw := resp.Body()
	var result sendResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode whatsapp response: %w: %v", ErrMalformedResponse, err)
	}
	if len(result.Messages) == 0 || result.Messages[0].ID == "" {
		return nil, ErrMalformedResponse
	}

	return &SendTextMessageResponse{
		MessageID: result.Messages[0].ID,
		Raw:       json.RawMessage(raw),
	}, nil
}
