package warp

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// JobHandler is called for every message on the request topic.
// job is nil when the payload could not be decoded; err says why.
type JobHandler func(job *Job, err error)

// MQTTClient manages the MQTT connection and the job request subscription
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	jobHandler  JobHandler
	isConnected bool
	mu          sync.RWMutex
}

// resolveMQTTSetting returns the environment override for key, else the config value
func resolveMQTTSetting(key, configured string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return configured
}

// InitMQTT creates and starts connecting an MQTT client.
// If neither MQTT_BROKER nor mqtt.broker is set, MQTT is disabled and this returns nil, nil.
func InitMQTT(config *Config, handler JobHandler) (*MQTTClient, error) {
	if config == nil {
		return nil, fmt.Errorf("MQTT requires a configuration")
	}

	broker := resolveMQTTSetting("MQTT_BROKER", config.MQTT.Broker)
	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config.MQTT.RequestTopic == "" {
		return nil, fmt.Errorf("MQTT enabled but mqtt.requestTopic is empty")
	}

	client := &MQTTClient{
		config:     config,
		jobHandler: handler,
	}
	client.client = mqtt.NewClient(client.clientOptions(broker))

	go client.connectWithRetry()

	return client, nil
}

// clientOptions builds the paho options for broker, applying environment overrides
func (c *MQTTClient) clientOptions(broker string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := resolveMQTTSetting("MQTT_CLIENT_ID", c.config.MQTT.ClientID)
	if clientID == "" {
		clientID = "mlswarp"
	}
	opts.SetClientID(clientID)

	if username := resolveMQTTSetting("MQTT_USERNAME", c.config.MQTT.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(resolveMQTTSetting("MQTT_PASSWORD", c.config.MQTT.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // keep the subscription across reconnects
	opts.SetOrderMatters(false) // handlers run a full warp; jobs are serialized by the caller

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)
	return opts
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] Connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] Connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] Connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] Connection timeout")
		}

		log.Printf("[MQTT] Retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the request topic; it also runs after every reconnect
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	topic := c.config.MQTT.RequestTopic
	log.Printf("[MQTT] Subscribing to %s", topic)
	token := client.Subscribe(topic, 1, c.handleRequest)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		return
	}
	log.Printf("[MQTT] Subscribed to %s", topic)
}

// onConnectionLost is called when the connection drops; auto-reconnect will retry
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] Connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] Reconnecting...")
}

// handleRequest decodes a job payload and hands it to the job handler
func (c *MQTTClient) handleRequest(client mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	log.Printf("[MQTT] Received job request (topic: %s, size: %d bytes)", msg.Topic(), len(payload))

	job, err := DecodeJob(payload)
	if err != nil {
		log.Printf("[MQTT] Error decoding job: %v", err)
	}
	if c.jobHandler != nil {
		c.jobHandler(job, err)
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] Disconnecting...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// NewMQTTClientWithClient wraps an existing mqtt.Client, e.g. a MockClient in tests
func NewMQTTClientWithClient(client mqtt.Client, config *Config, handler JobHandler) *MQTTClient {
	return &MQTTClient{
		client:     client,
		config:     config,
		jobHandler: handler,
	}
}

// Subscribe registers the request handler on an already connected client
func (c *MQTTClient) Subscribe() {
	c.onConnect(c.client)
}
