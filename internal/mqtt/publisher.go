package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"airquality-server/internal/modules/airquality/types"
)

// measurementMessage is the wire form consumed by Subscriber.
type measurementMessage struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	GWRPM25 float64 `json:"gwrpm25"`
}

type Publisher struct {
	client    mqtt.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(o Options, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		opts:   o,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	clientOpts := newClientOptions(o, logger,
		func() { p.setConnected(true) },
		func() { p.setConnected(false) },
	)
	p.client = mqtt.NewClient(clientOpts)
	return p
}

// Connect waits for the initial connection, and respects ctx and Disconnect().
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return fmt.Errorf("publisher stopped")
	default:
	}
	if p.IsConnected() {
		return nil
	}
	if err := waitToken(ctx, p.client.Connect(), p.stopCh); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func encodeMeasurement(m types.Measurement) ([]byte, error) {
	return json.Marshal(measurementMessage{Lat: m.Lat, Lon: m.Lon, GWRPM25: m.PM25})
}

// PublishMeasurement publishes one measurement to the configured topic.
func (p *Publisher) PublishMeasurement(m types.Measurement) error {
	if !p.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := encodeMeasurement(m)
	if err != nil {
		return fmt.Errorf("marshal measurement: %w", err)
	}

	topic := p.opts.Topic
	token := p.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		p.logger.Error("failed to publish measurement", "topic", topic, "error", token.Error())
		return fmt.Errorf("publish measurement: %w", token.Error())
	}

	p.logger.Debug("published measurement", "topic", topic, "lat", m.Lat, "lon", m.Lon)
	return nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect is idempotent. After it, Connect returns "publisher stopped".
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
