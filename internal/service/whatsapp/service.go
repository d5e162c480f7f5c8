package whatsapp

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/wa-relay/internal/config"
	"github.com/mamadbah2/wa-relay/internal/domain/apperr"
	"github.com/mamadbah2/wa-relay/internal/domain/models"
	"github.com/mamadbah2/wa-relay/internal/metrics"
	client "github.com/mamadbah2/wa-relay/pkg/clients/whatsapp"
	"github.com/mamadbah2/wa-relay/pkg/logger"
)

const (
	subscribeMode   = "subscribe"
	formContentType = "application/x-www-form-urlencoded"

	msgMissingFields  = "Missing required fields: phone_number_id, to, text, access_token"
	msgInvalidObject  = "Invalid webhook object"
	msgInvalidSig     = "Invalid signature"
	msgNoMessageID    = "upstream response did not include a message id"
	msgMissingHubArgs = "missing hub.mode or hub.verify_token"
)

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(challenge models.VerificationChallenge) (string, error)
	ReceiveWebhook(ctx context.Context, delivery models.WebhookDelivery) (*models.WebhookEvent, error)
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) (*models.SendResult, error)
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg    config.WhatsAppConfig
	client client.Client
	logger *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// VerifyWebhookToken validates the callback verification token and returns the
// challenge to echo back.
func (s *MetaWhatsAppService) VerifyWebhookToken(ch models.VerificationChallenge) (string, error) {
	if ch.Mode == "" || ch.Token == "" {
		return "", apperr.BadRequest(msgMissingHubArgs)
	}

	if ch.Mode != subscribeMode || !hmac.Equal([]byte(ch.Token), []byte(s.cfg.VerifyToken)) {
		return "", apperr.Forbidden("verification failed")
	}

	s.logger.Info("webhook verified")
	return ch.Challenge, nil
}

// ReceiveWebhook acknowledges a webhook callback after checking its signature (when
// an app secret is configured) and its object discriminator. Nested content is left
// untouched.
func (s *MetaWhatsAppService) ReceiveWebhook(ctx context.Context, delivery models.WebhookDelivery) (*models.WebhookEvent, error) {
	if s.cfg.AppSecret != "" && !VerifySignature(delivery.Body, s.cfg.AppSecret, delivery.Signature) {
		metrics.WebhookEventsTotal.WithLabelValues("invalid_signature").Inc()
		return nil, apperr.Forbidden(msgInvalidSig)
	}

	object, err := eventObject(delivery)
	if err != nil {
		s.logger.Warn("unreadable webhook body", zap.String("content_type", delivery.ContentType), zap.Error(err))
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		return nil, apperr.BadRequest(msgInvalidObject)
	}

	if object != models.BusinessAccountObject {
		s.logger.Warn("unexpected webhook object", zap.String("object", object))
		metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		return nil, apperr.BadRequest(msgInvalidObject)
	}

	s.logger.Info("webhook event received", zap.String("object", object), zap.Int("bytes", len(delivery.Body)))
	metrics.WebhookEventsTotal.WithLabelValues("accepted").Inc()
	return &models.WebhookEvent{Object: object, Raw: json.RawMessage(delivery.Body)}, nil
}

// eventObject reads the top-level "object" member. The key must match exactly and
// its value must be a string; anything else yields "".
func eventObject(delivery models.WebhookDelivery) (string, error) {
	if delivery.ContentType == formContentType {
		values, err := url.ParseQuery(string(delivery.Body))
		if err != nil {
			return "", err
		}
		return values.Get("object"), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(delivery.Body, &fields); err != nil {
		return "", err
	}
	raw, ok := fields["object"]
	if !ok {
		return "", nil
	}
	var object string
	if err := json.Unmarshal(raw, &object); err != nil {
		return "", nil
	}
	return object, nil
}

// SendOutbound validates and relays a text message to the Cloud API.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) (*models.SendResult, error) {
	if missing := req.MissingFields(); len(missing) > 0 {
		metrics.SendTotal.WithLabelValues("invalid").Inc()
		return nil, apperr.Validation(msgMissingFields, fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}

	to := NormalizeRecipient(req.To)
	log := s.logger.With(zap.String("phone_number_id", req.PhoneNumberID), zap.String("to", logger.MaskPhone(to)))

	resp, err := s.client.SendTextMessage(ctx, client.SendTextMessageRequest{
		PhoneNumberID: req.PhoneNumberID,
		AccessToken:   req.AccessToken,
		To:            to,
		Body:          req.Text,
	})
	if err != nil {
		metrics.SendTotal.WithLabelValues("upstream_error").Inc()
		mapped := mapUpstreamError(err)
		log.Error("failed sending whatsapp message", zap.Int("upstream_status", mapped.Status), zap.Error(err))
		return nil, mapped
	}

	metrics.SendTotal.WithLabelValues("sent").Inc()
	log.Info("whatsapp message sent", zap.String("message_id", resp.MessageID))

	return &models.SendResult{MessageID: resp.MessageID, Data: resp.Raw}, nil
}

func mapUpstreamError(err error) *apperr.Error {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		return apperr.Upstream(apiErr.StatusCode, apiErr.Detail(), err)
	case errors.Is(err, client.ErrMalformedResponse):
		return apperr.Upstream(0, msgNoMessageID, err)
	default:
		return apperr.Upstream(0, err.Error(), err)
	}
}

// NormalizeRecipient strips every character that is not an ASCII decimal digit.
func NormalizeRecipient(to string) string {
	var b strings.Builder
	b.Grow(len(to))
	for i := 0; i < len(to); i++ {
		if c := to[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
