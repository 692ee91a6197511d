package warp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes warp results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a result publisher.
// MQTT_PUBLISH_PREFIX overrides prefix; an empty prefix falls back to "mlswarp".
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "mlswarp"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        false,
	}
}

// Prefix returns the topic prefix results are published under
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// PublishResult publishes the warped PNG to {prefix}/{jobID}/image and the
// statistics to {prefix}/{jobID}/stats and {prefix}/latest
func (p *Publisher) PublishResult(result *Result) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	if result.Image != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, result.Image); err != nil {
			return fmt.Errorf("encoding result PNG: %w", err)
		}
		if err := p.publish(fmt.Sprintf("%s/%s/image", p.publishPrefix, result.JobID), buf.Bytes()); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := p.publish(fmt.Sprintf("%s/%s/stats", p.publishPrefix, result.JobID), payload); err != nil {
		return err
	}
	if err := p.publish(fmt.Sprintf("%s/latest", p.publishPrefix), payload); err != nil {
		return err
	}

	log.Printf("[MQTT] Published result for %s (%s, max displacement %.1f px)",
		result.JobID, result.Variant, result.Stats.MaxDisplacement)
	return nil
}

// PublishError reports a failed job on {prefix}/{jobID}/error
func (p *Publisher) PublishError(jobID string, jobErr error) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if jobID == "" {
		jobID = "unknown"
	}

	payload, err := json.Marshal(map[string]interface{}{
		"jobId":     jobID,
		"error":     jobErr.Error(),
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshaling error report: %w", err)
	}
	return p.publish(fmt.Sprintf("%s/%s/error", p.publishPrefix, jobID), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
