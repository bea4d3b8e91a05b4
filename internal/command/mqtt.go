package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"ecoshower-backend/config"
)

const publishTimeout = 5 * time.Second

// mqttConn is the slice of the paho client the publisher needs. Satisfied by
// pahomqtt.Client; tests substitute a fake.
type mqttConn interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTPublisher publishes commands to ecoshower/<device_id>/commands.
type MQTTPublisher struct {
	conn        mqttConn
	topicPrefix string
	qos         byte
}

// ConnectMQTT connects to the broker and returns a ready publisher.
func ConnectMQTT(cfg *config.MQTTConfig) (*MQTTPublisher, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %v", cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &MQTTPublisher{
		conn:        client,
		topicPrefix: cfg.TopicPrefix,
		qos:         cfg.QoS,
	}, nil
}

// Publish sends a command to the device's command topic.
func (p *MQTTPublisher) Publish(ctx context.Context, deviceID string, cmd Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("unknown command %q", cmd)
	}

	body, err := json.Marshal(newPayload(cmd, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal command payload: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/commands", p.topicPrefix, deviceID)
	token := p.conn.Publish(topic, p.qos, false, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s to %s: timeout", cmd, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", cmd, topic, err)
	}
	return nil
}
