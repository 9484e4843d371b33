package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/autoassist/car-buying-assistant/internal/models"
)

// Publisher notifies interested systems about evaluation status
// transitions. Publishing is best-effort; a failed publish must never
// fail the request that triggered it.
type Publisher interface {
	StatusChanged(evaluationID string, status models.Status, progress int)
}

// NopPublisher discards all events. Used when no broker is configured
// and in tests.
type NopPublisher struct{}

// StatusChanged does nothing.
func (NopPublisher) StatusChanged(string, models.Status, int) {}

type statusEvent struct {
	EvaluationID string        `json:"evaluation_id"`
	Status       models.Status `json:"status"`
	Progress     int           `json:"progress"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// MQTTPublisher publishes status transitions to an MQTT topic.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *log.Logger
}

// NewMQTTPublisher connects to the broker and returns a publisher for
// the given topic.
func NewMQTTPublisher(broker, clientID, topic string, logger *log.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	return &MQTTPublisher{client: client, topic: topic, logger: logger}, nil
}

// StatusChanged publishes the transition as JSON. Failures are logged
// and otherwise ignored.
func (p *MQTTPublisher) StatusChanged(evaluationID string, status models.Status, progress int) {
	payload, err := json.Marshal(statusEvent{
		EvaluationID: evaluationID,
		Status:       status,
		Progress:     progress,
		OccurredAt:   time.Now(),
	})
	if err != nil {
		p.logger.WithError(err).Error("failed to marshal status event")
		return
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.logger.WithError(err).WithField("evaluation_id", evaluationID).
				Error("failed to publish status event")
		}
	}()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
