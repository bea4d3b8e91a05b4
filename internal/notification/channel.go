package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
)

// PushPayload is the platform push body delivered alongside the plain message.
type PushPayload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
}

// Payload is the structured message published to a user's channel.
type Payload struct {
	Message string      `json:"message"`
	Push    PushPayload `json:"push"`
	UserID  string      `json:"user_id"`
}

// Channel publishes a payload to a per-user channel identified by an opaque
// handle.
type Channel interface {
	Publish(ctx context.Context, channelRef string, payload Payload) error
}

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WebPushChannel delivers payloads as web push messages. The channel ref is
// a JSON-encoded webpush subscription stored on the user record.
type WebPushChannel struct {
	options *webpush.Options
	sender  Sender
}

// NewWebPushChannel creates a channel using the given VAPID options.
func NewWebPushChannel(options *webpush.Options) *WebPushChannel {
	return &WebPushChannel{options: options, sender: &WebPushSender{}}
}

// Publish encodes the payload and pushes it to the subscription held in
// channelRef.
func (c *WebPushChannel) Publish(ctx context.Context, channelRef string, payload Payload) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(channelRef), &sub); err != nil {
		return fmt.Errorf("decode channel ref: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	resp, err := c.sender.Send(body, &sub, c.options)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
