package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/mamadbah2/wa-relay/internal/domain/apperr"
	"github.com/mamadbah2/wa-relay/internal/domain/models"
	service "github.com/mamadbah2/wa-relay/internal/service/whatsapp"
)

const signatureHeader = "X-Hub-Signature-256"

// WebhookHandler handles inbound and outbound WhatsApp HTTP events.
type WebhookHandler struct {
	svc    service.MessagingService
	logger *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter.
func NewWebhookHandler(svc service.MessagingService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, logger: logger}
}

// Verify responds to Meta's webhook verification challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	var ch models.VerificationChallenge
	if err := c.ShouldBindQuery(&ch); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	resp, err := h.svc.VerifyWebhookToken(ch)
	if err != nil {
		status, _ := toHTTP(err)
		h.logger.Warn("webhook verification failed", zap.Int("status", status), zap.String("mode", ch.Mode))
		c.Status(status)
		return
	}

	c.String(http.StatusOK, resp)
}

// Receive ingests webhook POST callbacks from Meta.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, readFailure(err, apperr.Internal), webhookFailure)
		return
	}

	delivery := models.WebhookDelivery{
		Body:        body,
		ContentType: c.ContentType(),
		Signature:   c.GetHeader(signatureHeader),
	}
	if _, err := h.svc.ReceiveWebhook(c.Request.Context(), delivery); err != nil {
		h.fail(c, err, webhookFailure)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// SendMessage relays an outbound text message and reports the provider's answer.
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	req, err := bindOutbound(c)
	if err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		h.fail(c, readFailure(err, invalidBody), sendFailure)
		return
	}

	result, err := h.svc.SendOutbound(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, sendFailure)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message_id": result.MessageID,
		"data":       result.Data,
	})
}

// bindOutbound decodes JSON bodies with exact key matching and leaves every other
// media type to gin's form binding.
func bindOutbound(c *gin.Context) (models.OutboundMessageRequest, error) {
	if c.ContentType() == binding.MIMEJSON {
		body, err := c.GetRawData()
		if err != nil {
			return models.OutboundMessageRequest{}, err
		}
		return models.DecodeOutboundJSON(body)
	}

	var req models.OutboundMessageRequest
	err := c.ShouldBind(&req)
	return req, err
}

func invalidBody(err error) *apperr.Error {
	return apperr.Validation("invalid request body", err)
}

func sendFailure(detail any) gin.H {
	return gin.H{"success": false, "error": detail}
}

func webhookFailure(detail any) gin.H {
	return gin.H{"error": detail}
}

func (h *WebhookHandler) fail(c *gin.Context, err error, envelope func(any) gin.H) {
	status, detail := toHTTP(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, envelope(detail))
}
