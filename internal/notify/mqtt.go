package notify

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
)

// Compile-time interface check to ensure proper implementation.
var _ wsi.NotificationSink = (*MQTTSink)(nil)

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // topic prefix, e.g. "wsi/notifications"
}

// Connect opens a broker connection. An empty ClientID gets a random one.
func Connect(ctx context.Context, cfg MQTTConfig, logger *zerolog.Logger) (mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, errors.NewConfigError("notify.mqtt", "broker is required", nil)
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "wsi-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("Connected to MQTT")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return nil, errors.WrapTransport("connect", cfg.Broker, err)
	}
	return client, nil
}

// wait blocks until token completes, ctx ends or the default timeout passes.
func wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(constants.DefaultTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.NewTimeoutError("mqtt publish", constants.DefaultTimeout.String(), "no acknowledgement from broker")
	}
}

// MQTTSink publishes alerts as JSON to {topic}/{sender}/notify,
// {topic}/{sender}/cancel and {topic}/{sender}/cancel-all.
type MQTTSink struct {
	client Publisher
	topic  string
	qos    byte
	logger *zerolog.Logger
}

// NewMQTTSink creates a sink publishing below topic with QoS 1.
func NewMQTTSink(client Publisher, topic string, logger *zerolog.Logger) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: 1, logger: logger}
}

type cancelPayload struct {
	EventID string    `json:"eventId,omitempty"`
	Time    time.Time `json:"time"`
}

func (s *MQTTSink) publish(ctx context.Context, senderID, action string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapParse("json", "notification", err)
	}
	topic := s.topic + "/" + senderID + "/" + action
	if err := wait(ctx, s.client.Publish(topic, s.qos, false, data)); err != nil {
		return errors.WrapTransport("publish", topic, err)
	}
	s.logger.Debug().Str("topic", topic).Msg("Notification published")
	return nil
}

// Notify implements wsi.NotificationSink.
func (s *MQTTSink) Notify(ctx context.Context, senderID string, n wsi.Notification) error {
	return s.publish(ctx, senderID, "notify", n)
}

// Cancel implements wsi.NotificationSink.
func (s *MQTTSink) Cancel(ctx context.Context, senderID, eventID string) error {
	return s.publish(ctx, senderID, "cancel", cancelPayload{EventID: eventID, Time: time.Now().UTC()})
}

// CancelAll implements wsi.NotificationSink.
func (s *MQTTSink) CancelAll(ctx context.Context, senderID string) error {
	return s.publish(ctx, senderID, "cancel-all", cancelPayload{Time: time.Now().UTC()})
}
