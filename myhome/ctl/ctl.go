package ctl

import (
	"github.com/asnowfix/homecontrol/myhome/ctl/contacts"
	"github.com/asnowfix/homecontrol/myhome/ctl/device"
	"github.com/asnowfix/homecontrol/myhome/ctl/history"
	"github.com/asnowfix/homecontrol/myhome/ctl/options"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "ctl",
	Short: "Query the controller and talk to devices",
	Args:  cobra.NoArgs,
}

func init() {
	Cmd.PersistentFlags().DurationVarP(&options.Flags.Wait, "wait", "w", options.COMMAND_DEFAULT_TIMEOUT, "Maximum time to wait for command to finish (0 = wait indefinitely)")
	Cmd.PersistentFlags().BoolVarP(&options.Flags.Json, "json", "j", false, "output in json format")
	Cmd.PersistentFlags().StringVarP(&options.Flags.Controller, "controller", "C", options.DEFAULT_CONTROLLER_URL, "URL of the controller's HTTP server")
	Cmd.PersistentFlags().DurationVarP(&options.Flags.DeviceTimeout, "device-timeout", "t", options.DEVICE_DEFAULT_TIMEOUT, "Timeout for device exchanges")

	Cmd.AddCommand(contacts.Cmd)
	Cmd.AddCommand(history.Cmd)
	Cmd.AddCommand(device.ReadCmd)
	Cmd.AddCommand(device.SendCmd)
}
