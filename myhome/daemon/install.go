package daemon

import (
	"github.com/asnowfix/homecontrol/hlog"
	"github.com/asnowfix/homecontrol/myhome/ctl/options"

	"github.com/go-logr/logr"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

func init() {
	Cmd.AddCommand(runCmd)
	Cmd.AddCommand(installCmd)
	Cmd.AddCommand(uninstallCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the MyHome daemon (in the foreground, or under the service manager)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hlog.InitForDaemon(options.Flags.Verbose, options.Flags.Debug)
		ctx := logr.NewContext(cmd.Context(), hlog.Logger.WithName("daemon"))

		v, err := loadViper(cmd)
		if err != nil {
			return err
		}

		if service.Interactive() {
			// signals are handled by the command line context
			return NewDaemon(ctx, v).Run()
		}
		s, _, err := load(ctx, v)
		if err != nil {
			return err
		}
		return s.Run()
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install MyHome as a " + service.Platform() + " service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadViper(cmd)
		if err != nil {
			return err
		}
		s, l, err := load(cmd.Context(), v)
		if err != nil {
			return err
		}
		l.Info("Installing service")
		return s.Install()
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall MyHome as a " + service.Platform() + " service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadViper(cmd)
		if err != nil {
			return err
		}
		s, l, err := load(cmd.Context(), v)
		if err != nil {
			return err
		}
		l.Info("Uninstalling service")
		return s.Uninstall()
	},
}
