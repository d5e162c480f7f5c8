package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/mamadbah2/wa-relay/internal/config"
	"github.com/mamadbah2/wa-relay/internal/domain/apperr"
	"github.com/mamadbah2/wa-relay/internal/domain/models"
	client "github.com/mamadbah2/wa-relay/pkg/clients/whatsapp"
)

type fakeClient struct {
	calls []client.SendTextMessageRequest
	resp  *client.SendTextMessageResponse
	err   error
}

func (f *fakeClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	f.calls = append(f.calls, req)
	return f.resp, f.err
}

func newService(fc *fakeClient, appSecret string) *MetaWhatsAppService {
	cfg := config.WhatsAppConfig{VerifyToken: "verify-me", AppSecret: appSecret}
	return NewMetaWhatsAppService(cfg, fc, nil)
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validRequest() models.OutboundMessageRequest {
	return models.OutboundMessageRequest{
		PhoneNumberID: "1234",
		To:            "+1 (555) 123-4567",
		Text:          "hello",
		AccessToken:   "tok",
	}
}

func TestNormalizeRecipient(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "15551234567",
		"15551234567":       "15551234567",
		"abc":               "",
		"٣٤٥12":             "12",
	}
	for in, want := range cases {
		if got := NormalizeRecipient(in); got != want {
			t.Errorf("NormalizeRecipient(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSendOutbound_MissingFields(t *testing.T) {
	blank := []func(*models.OutboundMessageRequest){
		func(r *models.OutboundMessageRequest) { r.PhoneNumberID = "" },
		func(r *models.OutboundMessageRequest) { r.To = "" },
		func(r *models.OutboundMessageRequest) { r.Text = "" },
		func(r *models.OutboundMessageRequest) { r.AccessToken = "" },
	}

	for i, mutate := range blank {
		fc := &fakeClient{}
		req := validRequest()
		mutate(&req)

		_, err := newService(fc, "").SendOutbound(context.Background(), req)
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
		if len(fc.calls) != 0 {
			t.Errorf("case %d: upstream must not be called", i)
		}
	}
}

func TestSendOutbound_Success(t *testing.T) {
	raw := json.RawMessage(`{"messages":[{"id":"wamid.X"}]}`)
	fc := &fakeClient{resp: &client.SendTextMessageResponse{MessageID: "wamid.X", Raw: raw}}

	res, err := newService(fc, "").SendOutbound(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("SendOutbound: %v", err)
	}
	if res.MessageID != "wamid.X" || string(res.Data) != string(raw) {
		t.Errorf("unexpected result %+v", res)
	}
	if len(fc.calls) != 1 {
		t.Fatalf("expected one upstream call, got %d", len(fc.calls))
	}
	call := fc.calls[0]
	if call.To != "15551234567" || call.Body != "hello" || call.AccessToken != "tok" || call.PhoneNumberID != "1234" {
		t.Errorf("unexpected upstream request %+v", call)
	}
}

func TestSendOutbound_UpstreamAPIError(t *testing.T) {
	fc := &fakeClient{err: &client.APIError{StatusCode: http.StatusUnauthorized, Body: []byte(`{"error":{"message":"bad token"}}`)}}

	_, err := newService(fc, "").SendOutbound(context.Background(), validRequest())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if appErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d", appErr.Status)
	}
	if d, ok := appErr.Detail.(json.RawMessage); !ok || string(d) != `{"message":"bad token"}` {
		t.Errorf("detail = %v", appErr.Detail)
	}
}

func TestSendOutbound_MalformedResponse(t *testing.T) {
	fc := &fakeClient{err: client.ErrMalformedResponse}

	_, err := newService(fc, "").SendOutbound(context.Background(), validRequest())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if appErr.Status != 0 || appErr.Detail != msgNoMessageID {
		t.Errorf("unexpected mapping %+v", appErr)
	}
}

func TestSendOutbound_TransportError(t *testing.T) {
	fc := &fakeClient{err: fmt.Errorf("send whatsapp message: %w", errors.New("connection refused"))}

	_, err := newService(fc, "").SendOutbound(context.Background(), validRequest())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if appErr.Detail != "send whatsapp message: connection refused" {
		t.Errorf("detail = %v", appErr.Detail)
	}
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := newService(&fakeClient{}, "")

	tests := []struct {
		name string
		in   models.VerificationChallenge
		want apperr.Kind
		ok   bool
	}{
		{"valid", models.VerificationChallenge{Mode: "subscribe", Token: "verify-me", Challenge: "123"}, 0, true},
		{"wrong token", models.VerificationChallenge{Mode: "subscribe", Token: "nope", Challenge: "123"}, apperr.KindForbidden, false},
		{"wrong mode", models.VerificationChallenge{Mode: "unsubscribe", Token: "verify-me"}, apperr.KindForbidden, false},
		{"mode case matters", models.VerificationChallenge{Mode: "SUBSCRIBE", Token: "verify-me"}, apperr.KindForbidden, false},
		{"missing mode", models.VerificationChallenge{Token: "verify-me"}, apperr.KindBadRequest, false},
		{"missing token", models.VerificationChallenge{Mode: "subscribe"}, apperr.KindBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.VerifyWebhookToken(tt.in)
			if tt.ok {
				if err != nil || got != tt.in.Challenge {
					t.Fatalf("got %q, %v", got, err)
				}
				return
			}
			if apperr.KindOf(err) != tt.want {
				t.Errorf("kind = %s, want %s", apperr.KindOf(err), tt.want)
			}
		})
	}
}

func jsonDelivery(body, signature string) models.WebhookDelivery {
	return models.WebhookDelivery{Body: []byte(body), ContentType: "application/json", Signature: signature}
}

func TestReceiveWebhook(t *testing.T) {
	svc := newService(&fakeClient{}, "")

	accepted := []models.WebhookDelivery{
		jsonDelivery(`{"object":"whatsapp_business_account","entry":[{"id":"1"}]}`, ""),
		jsonDelivery(`{"object":"whatsapp_business_account","OBJECT":"page"}`, ""),
		{Body: []byte("object=whatsapp_business_account&entry=1"), ContentType: "application/x-www-form-urlencoded"},
	}
	for _, d := range accepted {
		event, err := svc.ReceiveWebhook(context.Background(), d)
		if err != nil {
			t.Errorf("%s: unexpected error %v", d.Body, err)
			continue
		}
		if event.Object != models.BusinessAccountObject || len(event.Raw) == 0 {
			t.Errorf("%s: unexpected event %+v", d.Body, event)
		}
	}

	rejected := []models.WebhookDelivery{
		jsonDelivery(`{"object":"page"}`, ""),
		jsonDelivery(`{}`, ""),
		jsonDelivery(`[]`, ""),
		jsonDelivery(`not json`, ""),
		jsonDelivery(`null`, ""),
		jsonDelivery(`{"OBJECT":"whatsapp_business_account"}`, ""),
		jsonDelivery(`{"Object":"whatsapp_business_account"}`, ""),
		jsonDelivery(`{"object":["whatsapp_business_account"]}`, ""),
		{Body: []byte("OBJECT=whatsapp_business_account"), ContentType: "application/x-www-form-urlencoded"},
	}
	for _, d := range rejected {
		if _, err := svc.ReceiveWebhook(context.Background(), d); apperr.KindOf(err) != apperr.KindBadRequest {
			t.Errorf("%s: expected bad request, got %v", d.Body, err)
		}
	}
}

func TestReceiveWebhook_Signature(t *testing.T) {
	svc := newService(&fakeClient{}, "app-secret")
	body := `{"object":"whatsapp_business_account"}`

	if _, err := svc.ReceiveWebhook(context.Background(), jsonDelivery(body, sign([]byte(body), "app-secret"))); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if _, err := svc.ReceiveWebhook(context.Background(), jsonDelivery(body, sign([]byte(body), "other"))); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("expected forbidden for wrong signature, got %v", err)
	}
	if _, err := svc.ReceiveWebhook(context.Background(), jsonDelivery(body, "")); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("expected forbidden for missing signature, got %v", err)
	}
}

func TestVerifySignature_Malformed(t *testing.T) {
	if VerifySignature([]byte("b"), "s", "sha256=zz") {
		t.Error("non-hex signature must not verify")
	}
	if VerifySignature([]byte("b"), "s", "md5=abcd") {
		t.Error("unknown prefix must not verify")
	}
}
