package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/asnowfix/homecontrol/myhome/control"
	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"

	"github.com/spf13/viper"
)

func fromYAML(t *testing.T, in string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(in)); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromViper(fromYAML(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Controller.Interval != 5*time.Second || cfg.Controller.Timeout != 5*time.Second {
		t.Errorf("controller = %+v", cfg.Controller)
	}
	if cfg.Controller.Range != control.DefaultRange || cfg.Controller.Devices != nil {
		t.Errorf("range = %v, devices = %v", cfg.Controller.Range, cfg.Controller.Devices)
	}
	if cfg.Discovery.Domain != "local." || cfg.Http.Port != DEFAULT_HTTP_PORT || cfg.Mqtt.Topic != DEFAULT_MQTT_TOPIC {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDeviceRanges(t *testing.T) {
	cfg, err := LoadFromViper(fromYAML(t, `
controller:
  interval: 2s
  workers: 3
  range:
    min: 10
    max: 30
  devices:
    bedroom:
      min: 17
      max: 21
    cellar:
      max: 15
mqtt:
  broker: tcp://192.168.1.2:1883
  topic: home/ctl/
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Controller.Interval != 2*time.Second || cfg.Controller.Workers != 3 {
		t.Errorf("controller = %+v", cfg.Controller)
	}
	rules := cfg.Rules()
	if r := rules.For("bedroom"); r != (control.Range{Min: 17, Max: 21}) {
		t.Errorf("bedroom = %v", r)
	}
	if r := rules.For("cellar"); r != (control.Range{Min: 10, Max: 15}) {
		t.Errorf("cellar = %v", r)
	}
	if r := rules.For("kitchen"); r != (control.Range{Min: 10, Max: 30}) {
		t.Errorf("kitchen = %v", r)
	}
	if cfg.Mqtt.Broker != "tcp://192.168.1.2:1883" || cfg.Mqtt.Topic != "home/ctl" {
		t.Errorf("mqtt = %+v", cfg.Mqtt)
	}
}

func TestInvalid(t *testing.T) {
	for _, in := range []string{
		"controller:\n  range:\n    min: 50\n    max: 10\n",
		"controller:\n  workers: 0\n",
		"controller:\n  interval: 0s\n",
		"controller:\n  devices:\n    abc:\n      min: 200\n",
	} {
		if _, err := LoadFromViper(fromYAML(t, in)); err == nil {
			t.Errorf("accepted %q", in)
		}
	}
}

func TestMixedCaseDeviceIds(t *testing.T) {
	cfg, err := LoadFromViper(fromYAML(t, `
controller:
  devices:
    Kitchen:
      min: 18
      max: 25
`))
	if err != nil {
		t.Fatal(err)
	}
	id, err := devices.ParseId("temperature_Kitchen._sensor._tcp.local.")
	if err != nil {
		t.Fatal(err)
	}
	rules := cfg.Rules()
	if r := rules.For(id); r != (control.Range{Min: 18, Max: 25}) {
		t.Errorf("range of %q = %v", id, r)
	}
	cmd, out := rules.Decide(id, datum.NewNow(datum.Float(30), datum.DegreesC))
	if !out || cmd != thermostat.CoolTo(25) {
		t.Errorf("Decide(%q, 30) = %v, %v", id, cmd, out)
	}
}
