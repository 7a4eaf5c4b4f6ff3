package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
	defaultPublishTimeout = 5 * time.Second
	connectTimeout        = 5 * time.Second
)

// publisher is the part of paho.Client the dispatcher uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// MQTTOptions configures the MQTT dispatcher.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// commandMessage is the payload published for each command.
type commandMessage struct {
	Device  int    `json:"device"`
	Command string `json:"command"`
	Args    []any  `json:"args"`
	SentAt  int64  `json:"sent_at"`
}

// MQTTDispatcher publishes commands to <prefix>/<id>/set.
type MQTTDispatcher struct {
	client  publisher
	prefix  string
	qos     byte
	timeout time.Duration
	close   func()
}

// NewMQTTDispatcher connects to the broker.
func NewMQTTDispatcher(opts MQTTOptions) (*MQTTDispatcher, error) {
	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(paho.Client) {
			log.Info().Str("broker", opts.Broker).Msg("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Str("broker", opts.Broker).Msg("Connection lost to MQTT broker")
		}).
		SetKeepAlive(10 * time.Second).
		SetConnectTimeout(connectTimeout)

	client := paho.NewClient(pahoOpts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", opts.Broker, err)
	}

	d := newMQTTDispatcher(client, opts.TopicPrefix, opts.QoS)
	d.close = func() { client.Disconnect(uint(defaultPublishTimeout / time.Millisecond)) }
	return d, nil
}

func newMQTTDispatcher(client publisher, prefix string, qos byte) *MQTTDispatcher {
	return &MQTTDispatcher{
		client:  client,
		prefix:  prefix,
		qos:     qos,
		timeout: defaultPublishTimeout,
	}
}

// Topic returns the command topic for a device.
func (d *MQTTDispatcher) Topic(id int) string {
	return fmt.Sprintf("%s/%d/set", d.prefix, id)
}

// CallDevice publishes the command and waits for the broker to accept it.
func (d *MQTTDispatcher) CallDevice(ctx context.Context, id int, cmd string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(commandMessage{
		Device:  id,
		Command: cmd,
		Args:    args,
		SentAt:  time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshaling command for device %d: %w", id, err)
	}

	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	topic := d.Topic(id)
	token := d.client.Publish(topic, d.qos, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publishing to topic %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to topic %s: %w", topic, err)
	}

	log.Debug().Str("topic", topic).Str("cmd", cmd).Msg("Device command published")
	return nil
}

// Close disconnects from the broker.
func (d *MQTTDispatcher) Close() {
	if d.close != nil {
		d.close()
	}
}
