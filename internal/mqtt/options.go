package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"airquality-server/internal/config"
)

// Options selects the broker and topic shared by Subscriber and Publisher.
type Options struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Broker:   cfg.MQTTBroker,
		Port:     cfg.MQTTPort,
		ClientID: cfg.MQTTClientID,
		Topic:    cfg.MQTTTopic,
	}
}

func (o Options) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port)
}

func newClientOptions(o Options, logger *slog.Logger, onConnect func(), onLost func()) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.brokerURL())
	opts.SetClientID(o.ClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", o.Broker, "port", o.Port)
		onConnect()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
		onLost()
	})
	return opts
}

var errStopped = errors.New("mqtt client stopped")

// waitToken waits for token in a ctx/stop-aware loop.
func waitToken(ctx context.Context, token mqtt.Token, stopCh <-chan struct{}) error {
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			return token.Error()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return errStopped
		default:
		}
	}
}
