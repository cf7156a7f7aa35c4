package daemon

import (
	"github.com/asnowfix/homecontrol/myhome/config"
	"github.com/asnowfix/homecontrol/myhome/ctl/options"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "daemon",
	Short: "MyHome Daemon",
	Long:  "MyHome Daemon: discovers sensors and actuators, polls the sensors and drives the paired actuators",
	Args:  cobra.NoArgs,
}

func init() {
	Cmd.PersistentFlags().StringVarP(&options.Flags.Config, "config", "c", "", "configuration file (default: myhome.yaml in ., ~/.config/myhome, /etc/myhome)")
	Cmd.PersistentFlags().Int("http-port", config.DEFAULT_HTTP_PORT, "port of the introspection HTTP server (0 disables it)")
	Cmd.PersistentFlags().Duration("interval", 0, "control loop interval (overrides controller.interval)")
	Cmd.PersistentFlags().String("mqtt-broker", "", "MQTT broker to publish readings to")
	Cmd.PersistentFlags().Bool("mqtt-embedded", false, "start an embedded MQTT broker and publish readings to it")
}

// loadViper reads the configuration, with the flags the user actually set
// taking precedence over the file.
func loadViper(cmd *cobra.Command) (*viper.Viper, error) {
	v, err := config.NewViper(options.Flags.Config)
	if err != nil {
		return nil, err
	}
	for key, flag := range map[string]string{
		"http.port":           "http-port",
		"controller.interval": "interval",
		"mqtt.broker":         "mqtt-broker",
		"mqtt.embedded":       "mqtt-embedded",
	} {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}
