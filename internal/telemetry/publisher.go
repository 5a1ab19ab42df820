package telemetry

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
	"github.com/cyberbrick-rc/brickrx/internal/session"
)

// PublisherConfig locates the MQTT broker
type PublisherConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	Topic    string
	ClientID string
	Identity string
}

// Status is the retained message published on every transition
type Status struct {
	State    string    `json:"state"`
	Previous string    `json:"previous,omitempty"`
	At       time.Time `json:"at"`
	Identity string    `json:"identity,omitempty"`
}

type mqttClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes the link state to MQTT. Publishing is fire and forget:
// the control loop never waits for the broker.
type Publisher struct {
	client   mqttClient
	topic    string
	identity string
	log      *log.Logger
}

// NewPublisher configures a client that reconnects on its own. The broker
// marks the receiver offline through the will message if it vanishes.
func NewPublisher(config PublisherConfig, logger *log.Logger) *Publisher {
	will, _ := json.Marshal(Status{State: "offline", Identity: config.Identity})

	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", "broker", config.Broker, "err", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Debug("MQTT connected", "broker", config.Broker)
		})
	opts.SetWill(config.Topic, string(will), 1, true)

	return newPublisher(mqtt.NewClient(opts), config, logger)
}

func newPublisher(client mqttClient, config PublisherConfig, logger *log.Logger) *Publisher {
	return &Publisher{
		client:   client,
		topic:    config.Topic,
		identity: config.Identity,
		log:      logger,
	}
}

// Connect starts connecting in the background
func (p *Publisher) Connect() {
	p.client.Connect()
}

var _ session.Observer = (*Publisher)(nil)

// OnTransition publishes the new state, retained
func (p *Publisher) OnTransition(from, to protocol.LinkState, at time.Time) {
	p.publish(Status{State: to.String(), Previous: from.String(), At: at.UTC(), Identity: p.identity})
}

// OnCycle is a no-op; only transitions are published
func (p *Publisher) OnCycle(session.Outcome, time.Time) {}

func (p *Publisher) publish(s Status) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.log.Warn("Failed to encode link status", "err", err)
		return
	}
	p.client.Publish(p.topic, 1, true, payload)
}

// Close publishes a final offline status and disconnects
func (p *Publisher) Close() {
	p.publish(Status{State: "offline", At: time.Now().UTC(), Identity: p.identity})
	p.client.Disconnect(250)
}
