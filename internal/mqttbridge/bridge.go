// Package mqttbridge connects the recognition session to an MQTT broker:
// points published on the sample topic are fed to the session and every
// activation is published on the activation topic.
package mqttbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/gvf/internal/app"
	"github.com/ayusman/gvf/internal/geometry"
	"github.com/ayusman/gvf/internal/session"
)

const (
	disconnectQuiesce = 250 // milliseconds
	publishTimeout    = 10 * time.Second
	outboxSize        = 64
)

// Config holds the broker connection settings.
type Config struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	SampleTopic     string
	ActivationTopic string
	QoS             byte
}

// samplePayload is either a single point or a batch under "points".
type samplePayload struct {
	geometry.Point3D
	Points []geometry.Point3D `json:"points"`
}

// activationMessage is published for every recognized gesture.
type activationMessage struct {
	ID          string    `json:"id"`
	GestureID   int       `json:"gesture_id"`
	Alignment   float64   `json:"alignment"`
	Probability float64   `json:"probability"`
	Speed       float64   `json:"speed"`
	Time        time.Time `json:"time"`
}

// Bridge relays samples and activations between a broker and the app.
type Bridge struct {
	config Config
	app    *app.App

	mu     sync.Mutex
	client mqtt.Client
	cancel func()
	// activations wait here for the publisher goroutine; the paho
	// message handler that produced them must not block on an ack
	outbox chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a Bridge for the given app. Connect starts relaying.
func New(config Config, a *app.App) *Bridge {
	return &Bridge{config: config, app: a}
}

// start subscribes to app events and runs the publisher. Callers hold mu.
func (b *Bridge) start(publish func(topic string, payload []byte) error) {
	b.outbox = make(chan []byte, outboxSize)
	b.done = make(chan struct{})
	b.wg.Add(1)
	go b.runPublisher(publish, b.outbox, b.done)
	b.cancel = b.app.Subscribe(b.handleEvent)
}

func (b *Bridge) runPublisher(publish func(topic string, payload []byte) error, outbox <-chan []byte, done <-chan struct{}) {
	defer b.wg.Done()
	for {
		select {
		case <-done:
			return
		case payload := <-outbox:
			if err := publish(b.config.ActivationTopic, payload); err != nil {
				log.Printf("mqtt: publish %s error: %v", b.config.ActivationTopic, err)
			}
		}
	}
}

// Connect connects to the broker, subscribes to the sample topic and
// starts publishing activations.
func (b *Bridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(b.config.Broker).
		SetClientID(b.config.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second)
	if b.config.Username != "" {
		opts.SetUsername(b.config.Username)
		opts.SetPassword(b.config.Password)
	}
	// resubscribe after every (re)connect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(b.config.SampleTopic, b.config.QoS, b.handleSample)
		if token.Wait() && token.Error() != nil {
			log.Printf("mqtt: subscribe %s error: %v", b.config.SampleTopic, token.Error())
			return
		}
		log.Printf("mqtt: subscribed to %s", b.config.SampleTopic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", b.config.Broker)
	} else if token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", b.config.Broker, token.Error())
	}

	b.client = client
	b.start(func(topic string, payload []byte) error {
		token := client.Publish(topic, b.config.QoS, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("no acknowledgement after %s", publishTimeout)
		}
		return token.Error()
	})

	log.Printf("mqtt: relaying %s to the session", b.config.SampleTopic)
	return nil
}

// Close stops relaying and disconnects from the broker.
func (b *Bridge) Close() {
	b.mu.Lock()
	client, cancel, done := b.client, b.cancel, b.done
	b.client, b.cancel, b.done, b.outbox = nil, nil, nil, nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		close(done)
	}
	if client != nil {
		client.Unsubscribe(b.config.SampleTopic).WaitTimeout(publishTimeout)
		// completes any publish still waiting for an ack
		client.Disconnect(disconnectQuiesce)
		log.Println("mqtt: disconnected")
	}
	b.wg.Wait()
}

// handleSample feeds the points of one message to the session.
func (b *Bridge) handleSample(_ mqtt.Client, msg mqtt.Message) {
	points, err := decodeSamples(msg.Payload())
	if err != nil {
		log.Printf("mqtt: ignoring message on %s: %v", msg.Topic(), err)
		return
	}

	for _, p := range points {
		if _, err := b.app.AddSample(p); err != nil {
			if !errors.Is(err, session.ErrInvalidState) {
				log.Printf("mqtt: error processing sample: %v", err)
			}
			return
		}
	}
}

func decodeSamples(payload []byte) ([]geometry.Point3D, error) {
	var s samplePayload
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	if s.Points != nil {
		return s.Points, nil
	}
	return []geometry.Point3D{s.Point3D}, nil
}

// handleEvent queues activation events for publishing. It runs on the
// goroutine that fed the sample, often paho's message router, so it never
// waits for the broker.
func (b *Bridge) handleEvent(e app.Event) {
	if e.Type != app.EventActivation || e.Estimate == nil {
		return
	}

	payload, err := json.Marshal(activationMessage{
		ID:          e.ID,
		GestureID:   e.GestureID,
		Alignment:   e.Estimate.Alignment,
		Probability: e.Estimate.Probability,
		Speed:       e.Estimate.Dynamics.Speed,
		Time:        e.Time,
	})
	if err != nil {
		log.Printf("mqtt: failed to encode activation: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outbox == nil {
		return
	}
	select {
	case b.outbox <- payload:
	default:
		log.Printf("mqtt: outbox full, dropping activation %s", e.ID)
	}
}
