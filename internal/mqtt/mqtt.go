package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"airquality-server/internal/metrics"
	"airquality-server/internal/modules/airquality/types"
)

type Subscriber struct {
	client    mqtt.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handlerMu sync.RWMutex
	handler   func(m types.Measurement) error
}

// MQTTSubscriber interface for attaching message handlers
type MQTTSubscriber interface {
	SetMessageHandler(handler func(m types.Measurement) error)
}

// SetMessageHandler sets the handler called for each valid measurement message.
// Set it before Connect so no message is dropped after the first subscribe.
func (s *Subscriber) SetMessageHandler(handler func(m types.Measurement) error) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

func NewSubscriber(o Options, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Subscriber{
		opts:   o,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	// Clean sessions drop subscriptions on reconnect, so subscribe on every connect.
	clientOpts := newClientOptions(o, logger,
		func() {
			s.setConnected(true)
			go func() {
				if err := s.subscribe(); err != nil {
					logger.Error("mqtt subscribe failed", "topic", o.Topic, "error", err)
				}
			}()
		},
		func() { s.setConnected(false) },
	)
	s.client = mqtt.NewClient(clientOpts)
	return s
}

// Connect establishes connection to the MQTT broker. Subscribing happens in
// the connect callback.
func (s *Subscriber) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	// Fast path.
	if s.IsConnected() {
		return nil
	}

	if err := waitToken(ctx, s.client.Connect(), s.stopCh); err != nil {
		s.client.Disconnect(0)
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (s *Subscriber) subscribe() error {
	topic := s.opts.Topic
	qos := byte(1) // At least once delivery

	token := s.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	m, err := types.DecodeMeasurement(payload)
	if err != nil {
		metrics.RecordMQTTMessage(false)
		s.logger.Warn("invalid measurement message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()
	if handler == nil {
		s.logger.Warn("no handler for measurement message", "topic", topic)
		return
	}

	if err := handler(m); err != nil {
		s.logger.Error("message handler failed", "topic", topic, "error", err)
		return
	}
	metrics.RecordMQTTMessage(true)
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	// Signal shutdown once (unblocks any Connect loops).
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.opts.Topic)
		token.WaitTimeout(2 * time.Second)
	}

	// Disconnect without holding s.mu to avoid lock contention/deadlocks.
	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
