package history

import (
	"fmt"
	"net/url"

	"github.com/asnowfix/homecontrol/myhome/control"
	"github.com/asnowfix/homecontrol/myhome/ctl/options"
	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/spf13/cobra"
)

var latest bool

func init() {
	Cmd.Flags().BoolVarP(&latest, "latest", "L", false, "only the most recent entry (requires an id)")
}

var Cmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show the latest readings (and commands) recorded by the controller",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			if latest {
				return fmt.Errorf("--latest requires a device id")
			}
			var all map[devices.Id][]control.Entry
			if err := options.GetJSON(cmd.Context(), "/history", &all); err != nil {
				return err
			}
			return options.PrintResult(all)
		}
		path := fmt.Sprintf("/history/%s", url.PathEscape(args[0]))
		if latest {
			var entry control.Entry
			if err := options.GetJSON(cmd.Context(), path+"?latest", &entry); err != nil {
				return err
			}
			return options.PrintResult(entry)
		}
		var entries []control.Entry
		if err := options.GetJSON(cmd.Context(), path, &entries); err != nil {
			return err
		}
		return options.PrintResult(entries)
	},
}
