package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// MQTTSender publishes worker alerts to an MQTT topic. The ops side runs a
// bridge that turns these into emails.
type MQTTSender struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSender connects to the broker and returns a ready sender.
func NewMQTTSender(brokerURL, clientID, topic string) (*MQTTSender, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(publishTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	return &MQTTSender{client: client, topic: topic}, nil
}

// SendWorkerAlert publishes the alert as JSON at QoS 1.
func (s *MQTTSender) SendWorkerAlert(ctx context.Context, a WorkerAlert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	token := s.client.Publish(s.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish alert: timed out after %s", publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSender) Close() {
	s.client.Disconnect(250)
}
