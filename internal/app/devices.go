package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/housekeepd/internal/config"
	"github.com/dokzlo13/housekeepd/internal/device"
)

// newDispatcher builds the configured device driver. The returned func
// releases driver resources.
func newDispatcher(cfg config.DevicesConfig) (device.Dispatcher, func(), error) {
	var (
		d      device.Dispatcher
		closer = func() {}
	)

	switch cfg.Driver {
	case "hue":
		d = device.NewHueDispatcher(cfg.Hue.Bridge, cfg.Hue.Token, cfg.Hue.Timeout.Duration())
		log.Info().Str("bridge", cfg.Hue.Bridge).Msg("Using Hue device driver")
	case "mqtt":
		m, err := device.NewMQTTDispatcher(device.MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create MQTT driver: %w", err)
		}
		d, closer = m, m.Close
		log.Info().Str("broker", cfg.MQTT.Broker).Str("prefix", cfg.MQTT.TopicPrefix).Msg("Using MQTT device driver")
	default:
		d = device.NewLogDispatcher()
		log.Info().Msg("Using log device driver, device commands are not sent anywhere")
	}

	if cfg.RateLimitRPS > 0 {
		d = device.NewRateLimited(d, cfg.RateLimitRPS)
	}

	return d, closer, nil
}
