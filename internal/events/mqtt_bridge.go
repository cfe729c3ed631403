package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benmeehan/sensor-alert-engine/pkg/mqtt"
)

// MQTTBridgeObserver mirrors bus events onto MQTT topics for downstream consumers.
type MQTTBridgeObserver struct {
	client      mqtt.MQTTClient
	topicPrefix string
	qos         byte
	timeout     time.Duration
}

type bridgeMessage struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

// NewMQTTBridgeObserver creates a bridge publishing to <topicPrefix>/<kind>.
func NewMQTTBridgeObserver(client mqtt.MQTTClient, topicPrefix string, qos int, timeout time.Duration) *MQTTBridgeObserver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTBridgeObserver{
		client:      client,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		qos:         byte(qos),
		timeout:     timeout,
	}
}

func (o *MQTTBridgeObserver) Name() string {
	return "mqtt_bridge"
}

func (o *MQTTBridgeObserver) OnEvent(kind string, payload map[string]any) error {
	data, err := json.Marshal(bridgeMessage{Kind: kind, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	topic := o.topicPrefix + "/" + kind
	token := o.client.Publish(topic, o.qos, false, data)
	if !token.WaitTimeout(o.timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
