package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asnowfix/homecontrol/internal/mynet"
	"github.com/asnowfix/homecontrol/myhome/control"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/transport"

	"github.com/spf13/viper"
)

const (
	CONFIG_NAME = "myhome"
	ENV_PREFIX  = "MYHOME"

	DEFAULT_HTTP_PORT  = 8890
	DEFAULT_MQTT_PORT  = 1883
	DEFAULT_MQTT_TOPIC = "myhome/controller"
)

type Config struct {
	Controller ControllerConfig `yaml:"controller" json:"controller"`
	Discovery  DiscoveryConfig  `yaml:"discovery" json:"discovery"`
	Http       HttpConfig       `yaml:"http" json:"http"`
	Mqtt       MqttConfig       `yaml:"mqtt" json:"mqtt"`
}

type ControllerConfig struct {
	Interval time.Duration                `yaml:"interval" json:"interval"`
	Timeout  time.Duration                `yaml:"timeout" json:"timeout"`
	Workers  int                          `yaml:"workers" json:"workers"`
	History  int                          `yaml:"history" json:"history"`
	Range    control.Range                `yaml:"range" json:"range"`
	Devices  map[devices.Id]control.Range `yaml:"devices,omitempty" json:"devices,omitempty"`
}

type DiscoveryConfig struct {
	Domain string `yaml:"domain" json:"domain"`
}

type HttpConfig struct {
	Port int `yaml:"port" json:"port"` // 0 disables the HTTP server
}

type MqttConfig struct {
	Broker   string `yaml:"broker" json:"broker"` // empty: no publication unless embedded
	Embedded bool   `yaml:"embedded" json:"embedded"`
	Port     int    `yaml:"port" json:"port"`
	Topic    string `yaml:"topic" json:"topic"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("controller.interval", control.DEFAULT_INTERVAL)
	v.SetDefault("controller.timeout", transport.DEFAULT_TIMEOUT)
	v.SetDefault("controller.workers", control.DEFAULT_WORKERS)
	v.SetDefault("controller.history", control.DEFAULT_HISTORY_DEPTH)
	v.SetDefault("controller.range.min", control.DefaultRange.Min)
	v.SetDefault("controller.range.max", control.DefaultRange.Max)
	v.SetDefault("discovery.domain", mynet.DOMAIN)
	v.SetDefault("http.port", DEFAULT_HTTP_PORT)
	v.SetDefault("mqtt.embedded", false)
	v.SetDefault("mqtt.port", DEFAULT_MQTT_PORT)
	v.SetDefault("mqtt.topic", DEFAULT_MQTT_TOPIC)
}

// NewViper reads file, or "myhome.yaml" from the usual places when file is
// empty. A missing default file is not an error. Environment variables
// (MYHOME_CONTROLLER_INTERVAL, ...) override the file.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
		return v, nil
	}

	v.SetConfigName(CONFIG_NAME)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", CONFIG_NAME))
	}
	v.AddConfigPath(filepath.Join("/etc", CONFIG_NAME))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// LoadFromViper builds the configuration from v. Device ids under
// controller.devices are matched lower-cased, as viper folds keys.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	cfg.Controller.Interval = v.GetDuration("controller.interval")
	cfg.Controller.Timeout = v.GetDuration("controller.timeout")
	cfg.Controller.Workers = v.GetInt("controller.workers")
	cfg.Controller.History = v.GetInt("controller.history")
	cfg.Controller.Range = control.Range{
		Min: v.GetFloat64("controller.range.min"),
		Max: v.GetFloat64("controller.range.max"),
	}
	if cfg.Controller.Interval <= 0 {
		return nil, fmt.Errorf("controller.interval must be positive, got %v", cfg.Controller.Interval)
	}
	if cfg.Controller.Workers <= 0 {
		return nil, fmt.Errorf("controller.workers must be positive, got %d", cfg.Controller.Workers)
	}
	if err := cfg.Controller.Range.Validate(); err != nil {
		return nil, fmt.Errorf("controller.range: %w", err)
	}

	devicesMap := v.GetStringMap("controller.devices")
	if len(devicesMap) != 0 {
		cfg.Controller.Devices = make(map[devices.Id]control.Range, len(devicesMap))
	}
	for id := range devicesMap {
		key := fmt.Sprintf("controller.devices.%s", id)
		r := cfg.Controller.Range
		if v.IsSet(key + ".min") {
			r.Min = v.GetFloat64(key + ".min")
		}
		if v.IsSet(key + ".max") {
			r.Max = v.GetFloat64(key + ".max")
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		cfg.Controller.Devices[devices.Id(id)] = r
	}

	cfg.Discovery.Domain = v.GetString("discovery.domain")
	cfg.Http.Port = v.GetInt("http.port")

	cfg.Mqtt.Broker = v.GetString("mqtt.broker")
	cfg.Mqtt.Embedded = v.GetBool("mqtt.embedded")
	cfg.Mqtt.Port = v.GetInt("mqtt.port")
	cfg.Mqtt.Topic = strings.TrimRight(v.GetString("mqtt.topic"), "/")

	return &cfg, nil
}

func (c *Config) Rules() control.Rules {
	return control.Rules{
		Default: c.Controller.Range,
		Devices: c.Controller.Devices,
	}
}

func (c *Config) Loop() control.Config {
	return control.Config{
		Interval: c.Controller.Interval,
		Workers:  c.Controller.Workers,
		Rules:    c.Rules(),
	}
}
