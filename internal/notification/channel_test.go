package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSender captures the payload and subscription it was asked to push.
type mockSender struct {
	payload []byte
	sub     *webpush.Subscription
	status  int
	err     error
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	m.payload = payload
	m.sub = sub
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func TestWebPushChannelPublish(t *testing.T) {
	sender := &mockSender{status: http.StatusCreated}
	channel := NewWebPushChannel(&webpush.Options{TTL: 60})
	channel.sender = sender

	ref := `{"endpoint":"https://push.example/sub","keys":{"p256dh":"k","auth":"a"}}`
	err := channel.Publish(context.Background(), ref, Payload{
		Message: "hello",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	require.NotNil(t, sender.sub)
	assert.Equal(t, "https://push.example/sub", sender.sub.Endpoint)

	var sent Payload
	require.NoError(t, json.Unmarshal(sender.payload, &sent))
	assert.Equal(t, "hello", sent.Message)
}

func TestWebPushChannelBadChannelRef(t *testing.T) {
	channel := NewWebPushChannel(&webpush.Options{})
	channel.sender = &mockSender{status: http.StatusCreated}

	err := channel.Publish(context.Background(), "not json", Payload{})
	assert.Error(t, err)
}

func TestWebPushChannelEndpointError(t *testing.T) {
	channel := NewWebPushChannel(&webpush.Options{})
	channel.sender = &mockSender{status: http.StatusGone}

	ref := `{"endpoint":"https://push.example/sub"}`
	err := channel.Publish(context.Background(), ref, Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}
