package models

import "encoding/json"

// BusinessAccountObject is the webhook discriminator Meta uses for WhatsApp Business
// Account notifications.
const BusinessAccountObject = "whatsapp_business_account"

// WebhookDelivery is a webhook POST as received: the raw body, its media type and the
// X-Hub-Signature-256 header.
type WebhookDelivery struct {
	Body        []byte
	ContentType string
	Signature   string
}

// WebhookEvent is an accepted webhook callback. Only Object is inspected; the rest of
// the payload is kept verbatim in Raw.
type WebhookEvent struct {
	Object string
	Raw    json.RawMessage
}

// VerificationChallenge carries the hub.* query parameters of the subscription handshake.
type VerificationChallenge struct {
	Mode      string `form:"hub.mode"`
	Token     string `form:"hub.verify_token"`
	Challenge string `form:"hub.challenge"`
}
