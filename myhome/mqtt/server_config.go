package mqtt

import (
	"context"

	"github.com/go-logr/logr"
	mochimqtt "github.com/mochi-mqtt/server/v2"
	"github.com/spf13/viper"
)

const BROKER_OPTIONS_KEY = "mqtt.options"

// loadBrokerConfig loads broker options from the "mqtt.options" section,
// or uses mochi defaults.
func loadBrokerConfig(ctx context.Context, log logr.Logger, v *viper.Viper) *mochimqtt.Options {
	config := &mochimqtt.Options{
		Capabilities: mochimqtt.NewDefaultServerCapabilities(),
	}

	if v != nil && v.IsSet(BROKER_OPTIONS_KEY) {
		if err := v.UnmarshalKey(BROKER_OPTIONS_KEY, config); err != nil {
			log.Error(err, "Failed to unmarshal MQTT broker options, using defaults")
			return &mochimqtt.Options{
				Capabilities: mochimqtt.NewDefaultServerCapabilities(),
			}
		}
		log.Info("MQTT broker options loaded from config file")
	}

	log.V(1).Info("MQTT broker options",
		"capabilities", config.Capabilities,
		"client_net_write_buffer_size", config.ClientNetWriteBufferSize,
		"client_net_read_buffer_size", config.ClientNetReadBufferSize,
		"sys_topic_resend_interval", config.SysTopicResendInterval)

	return config
}
