// Package notify provides transport adapters for contractor invitations.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	corenotify "github.com/CleanExpo/Disaster-Recovery-sub021/core/notify"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/logger"
)

// Config defines the connection parameters for the MQTT notifier.
type Config struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	MaxRetries  int    `json:"max_retries"`
	BackoffMS   int    `json:"backoff_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "contractors"
	}
	if c.ClientID == "" {
		c.ClientID = "dispatch-core"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 500
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTNotifier publishes invitations to the contractor's job topic. Each
// contractor portal subscribes to contractors/<id>/jobs.
type MQTTNotifier struct {
	cli    pahoClient
	cfg    Config
	logger logger.Logger
}

// NewMQTTNotifier connects to the broker with retry and returns the notifier.
func NewMQTTNotifier(cfg Config) (*MQTTNotifier, error) {
	cfg.SetDefaults()
	if cfg.Broker == "" {
		return nil, fmt.Errorf("notify: broker is required")
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	cli := newMQTTClient(opts)
	backoff := time.Duration(cfg.BackoffMS) * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		token := cli.Connect()
		token.Wait()
		if lastErr = token.Error(); lastErr == nil {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	if lastErr != nil {
		return nil, fmt.Errorf("notify: connect to %s: %w", cfg.Broker, lastErr)
	}
	return &MQTTNotifier{cli: cli, cfg: cfg, logger: logger.New("mqtt-notifier")}, nil
}

// Send implements notify.Notifier. The publish respects the context deadline.
func (n *MQTTNotifier) Send(ctx context.Context, contractorID string, inv corenotify.Invitation) error {
	if !n.cli.IsConnected() {
		return fmt.Errorf("notify: not connected")
	}
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/jobs", n.cfg.TopicPrefix, contractorID)
	token := n.cli.Publish(topic, n.cfg.QoS, false, payload)

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
		if err := token.Error(); err != nil {
			return fmt.Errorf("notify: publish to %s: %w", topic, err)
		}
		n.logger.Debugw("invitation published", map[string]any{
			"topic":  topic,
			"job_id": inv.JobID,
			"round":  inv.Round,
		})
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify: publish to %s: %w", topic, ctx.Err())
	}
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	n.cli.Disconnect(250)
}
