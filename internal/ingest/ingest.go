// FilePath: internal/ingest/ingest.go
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/config"
	"github.com/fabwatch/factoryhub/internal/models"
)

// TelemetryAcceptor is the accounting entry point the consumer feeds.
// Injected rather than reached for globally so the consumer can be
// tested without a broker.
type TelemetryAcceptor interface {
	AcceptTelemetry(ctx context.Context, machineID string, status models.MachineStatus, energyCounter float64) (*models.TelemetryResult, error)
}

// telemetryPayload is the wire format published by the spray machines:
// {"status": 0|1, "energy": <cumulative kWh counter>}
type telemetryPayload struct {
	Status models.MachineStatus `json:"status"`
	Energy float64              `json:"energy"`
}

// Consumer subscribes to the spray telemetry topic and hands decoded
// messages to the accounting service. Delivery is QoS 0: the broker
// contract is at-most-once, so the consumer never retries a failed
// message itself.
type Consumer struct {
	client   mqtt.Client
	acceptor TelemetryAcceptor
	topic    string
	timeout  time.Duration
}

func NewConsumer(cfg config.MQTTConfig, acceptor TelemetryAcceptor) *Consumer {
	c := &Consumer{
		acceptor: acceptor,
		topic:    cfg.Topic,
		timeout:  10 * time.Second,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			nuts.L.Warnf("[Ingest] MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(client mqtt.Client) {
			nuts.L.Infof("[Ingest] Connected to MQTT broker %s", cfg.BrokerURL)
			if token := client.Subscribe(c.topic, 0, c.handleMessage); token.Wait() && token.Error() != nil {
				nuts.L.Errorf("[Ingest] Failed to subscribe to %s: %v", c.topic, token.Error())
			}
		})

	c.client = mqtt.NewClient(opts)
	return c
}

// Start connects to the broker; the subscription is established by the
// on-connect handler on every (re)connect.
func (c *Consumer) Start() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Stop disconnects, allowing in-flight handlers to finish.
func (c *Consumer) Stop() {
	c.client.Disconnect(250)
	nuts.L.Infof("[Ingest] MQTT consumer stopped")
}

func (c *Consumer) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	machineID, err := machineIDFromTopic(msg.Topic())
	if err != nil {
		nuts.L.Warnf("[Ingest] Dropping message on unexpected topic %s: %v", msg.Topic(), err)
		return
	}

	payload, err := decodePayload(msg.Payload())
	if err != nil {
		nuts.L.Warnf("[Ingest] Dropping malformed payload from %s: %v", machineID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	result, err := c.acceptor.AcceptTelemetry(ctx, machineID, payload.Status, payload.Energy)
	if err != nil {
		nuts.L.Errorf("[Ingest] Telemetry rejected for %s: %v", machineID, err)
		return
	}
	if !result.Accepted {
		nuts.L.Debugf("[Ingest] Out-of-shift telemetry ignored for %s", machineID)
	}
}

// machineIDFromTopic extracts the machine id from topics shaped
// factory/spray/{machineId}/telemetry.
func machineIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[3] != "telemetry" {
		return "", fmt.Errorf("topic %q does not match factory/spray/+/telemetry", topic)
	}
	if parts[2] == "" {
		return "", fmt.Errorf("empty machine id in topic %q", topic)
	}
	return parts[2], nil
}

func decodePayload(raw []byte) (*telemetryPayload, error) {
	var payload telemetryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid telemetry JSON: %w", err)
	}
	return &payload, nil
}
