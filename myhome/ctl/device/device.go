package device

import (
	"fmt"

	"github.com/asnowfix/homecontrol/myhome/ctl/options"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"
	"github.com/asnowfix/homecontrol/pkg/transport"

	"github.com/spf13/cobra"
)

type reading struct {
	Address string  `json:"address" yaml:"address"`
	Value   string  `json:"value" yaml:"value"`
	Unit    string  `json:"unit" yaml:"unit"`
	Number  float64 `json:"number" yaml:"number"`
	Time    string  `json:"time" yaml:"time"`
	Raw     string  `json:"raw" yaml:"raw"`
}

var ReadCmd = &cobra.Command{
	Use:   "read <host:port>",
	Short: "Read a sensor directly",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := devices.ParseAddress(args[0])
		if err != nil {
			return err
		}
		d, err := transport.NewClient(options.Flags.DeviceTimeout).ReadSensor(cmd.Context(), addr)
		if err != nil {
			return err
		}
		return options.PrintResult(reading{
			Address: addr.String(),
			Value:   d.Value.String(),
			Unit:    d.Unit.String(),
			Number:  d.Value.Number(),
			Time:    d.Timestamp.Format("2006-01-02T15:04:05.999999999Z07:00"),
			Raw:     d.String(),
		})
	},
}

type ack struct {
	Address  string `json:"address" yaml:"address"`
	Command  string `json:"command" yaml:"command"`
	Response string `json:"response" yaml:"response"`
}

var SendCmd = &cobra.Command{
	Use:   "send <host:port> <CoolTo|HeatTo|SetTarget>:<temperature>",
	Short: "Send a command to an actuator directly",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := devices.ParseAddress(args[0])
		if err != nil {
			return err
		}
		c, err := thermostat.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid command: %w", err)
		}
		response, err := transport.NewClient(options.Flags.DeviceTimeout).CommandActuator(cmd.Context(), addr, c)
		if err != nil {
			return err
		}
		return options.PrintResult(ack{
			Address:  addr.String(),
			Command:  c.String(),
			Response: transport.LastLine(response),
		})
	},
}
