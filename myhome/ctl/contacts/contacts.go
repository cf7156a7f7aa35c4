package contacts

import (
	"fmt"

	"github.com/asnowfix/homecontrol/myhome/ctl/options"
	"github.com/asnowfix/homecontrol/myhome/metrics"
	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "contacts [sensor|actuator]",
	Short: "List the devices the controller knows about",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dir metrics.Directory
		if err := options.GetJSON(cmd.Context(), "/contacts", &dir); err != nil {
			return err
		}
		if len(args) == 0 {
			return options.PrintResult(dir)
		}
		role, err := devices.ParseRole(args[0])
		if err != nil {
			return fmt.Errorf("expected sensor or actuator: %w", err)
		}
		if role == devices.Sensor {
			return options.PrintResult(dir.Sensors)
		}
		return options.PrintResult(dir.Actuators)
	},
}
