package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/asnowfix/homecontrol/internal/mynet"
	"github.com/asnowfix/homecontrol/myhome/ctl/options"
	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"
	"github.com/asnowfix/homecontrol/pkg/endpoint"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type endpointFlags struct {
	Id       string
	Kind     string
	Listen   string
	Domain   string
	Announce bool
}

func (f *endpointFlags) register(cmd *cobra.Command, kind string) {
	cmd.Flags().StringVarP(&f.Id, "id", "i", "", "device id (default: a random UUID)")
	cmd.Flags().StringVarP(&f.Kind, "kind", "k", kind, "device kind, first token of the announced instance name")
	cmd.Flags().StringVarP(&f.Listen, "listen", "l", "0.0.0.0:0", "address to listen on (port 0 picks a free one)")
	cmd.Flags().StringVar(&f.Domain, "domain", mynet.DOMAIN, "DNS-SD domain to announce in")
	cmd.Flags().BoolVar(&f.Announce, "announce", true, "announce the device over DNS-SD")
}

func (f *endpointFlags) id() (devices.Id, error) {
	if f.Id == "" {
		return devices.Id(uuid.NewString()), nil
	}
	if strings.ContainsAny(f.Id, "_.") {
		return "", fmt.Errorf("device id %q must not contain '_' or '.'", f.Id)
	}
	return devices.Id(f.Id), nil
}

// serve runs the endpoint until ctx is done, announcing it when asked to.
func (f *endpointFlags) serve(ctx context.Context, role devices.Role, handler endpoint.Handler) error {
	log := logr.FromContextOrDiscard(ctx)
	if strings.ContainsAny(f.Kind, "_.") || f.Kind == "" {
		return fmt.Errorf("device kind %q must be non-empty, without '_' or '.'", f.Kind)
	}
	id, err := f.id()
	if err != nil {
		return err
	}

	server, err := endpoint.Listen(ctx, f.Listen, handler)
	if err != nil {
		return err
	}
	log.Info("Device ready", "role", role.String(), "id", id, "kind", f.Kind, "address", server.Address().String())

	if f.Announce {
		resolver := mynet.MyResolver(log.WithName("mynet.Resolver"), options.Flags.MdnsTimeout)
		if err := endpoint.Announce(ctx, resolver, role, f.Kind, id, server.Port(), f.Domain); err != nil {
			server.Close()
			return err
		}
	}
	return server.Serve(ctx)
}

var sensorFlags endpointFlags

var sensorValue string
var sensorUnit string
var sensorStdin bool

var SensorCmd = &cobra.Command{
	Use:   "sensor",
	Short: "Run a sensor that reports a fixed (or stdin-fed) reading",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logr.FromContextOrDiscard(ctx).WithName("sensor")
		ctx = logr.NewContext(ctx, log)

		value, err := datum.ParseValue(sensorValue)
		if err != nil {
			return err
		}
		unit, err := datum.ParseUnit(sensorUnit)
		if err != nil {
			return err
		}
		reading := endpoint.NewReading(value, unit)
		if sensorStdin {
			go feed(ctx, os.Stdin, reading)
		}
		return sensorFlags.serve(ctx, devices.Sensor, endpoint.SensorHandler(reading.Datum))
	},
}

// feed sets the reading from each line of r.
func feed(ctx context.Context, r io.Reader, reading *endpoint.Reading) {
	log := logr.FromContextOrDiscard(ctx)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		value, err := datum.ParseValue(line)
		if err != nil {
			log.Error(err, "Ignoring value", "line", line)
			continue
		}
		reading.Set(value)
		log.Info("Reading updated", "value", value.String())
	}
}

var actuatorFlags endpointFlags

var ActuatorCmd = &cobra.Command{
	Use:   "actuator",
	Short: "Run a thermostat actuator that logs the commands it receives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logr.FromContextOrDiscard(ctx).WithName("actuator")
		ctx = logr.NewContext(ctx, log)

		var t endpoint.Thermostat
		act := func(ctx context.Context, c thermostat.Command) error {
			log.Info("Received command", "command", c.String(), "count", t.Count()+1)
			return t.Apply(ctx, c)
		}
		return actuatorFlags.serve(ctx, devices.Actuator, endpoint.ActuatorHandler(act))
	},
}

func init() {
	sensorFlags.register(SensorCmd, "temperature")
	SensorCmd.Flags().StringVarP(&sensorValue, "value", "V", "21.5", "reported value (true/false, integer or float)")
	SensorCmd.Flags().StringVarP(&sensorUnit, "unit", "u", "°C", "unit of the reported value (°C, %, ⏼ or empty)")
	SensorCmd.Flags().BoolVar(&sensorStdin, "stdin", false, "read new values from standard input, one per line")

	actuatorFlags.register(ActuatorCmd, "thermostat")
}
