package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/asnowfix/homecontrol/hlog"
	"github.com/asnowfix/homecontrol/internal/debug"
	"github.com/asnowfix/homecontrol/internal/global"
	"github.com/asnowfix/homecontrol/myhome/ctl"
	"github.com/asnowfix/homecontrol/myhome/ctl/options"
	"github.com/asnowfix/homecontrol/myhome/daemon"
	"github.com/asnowfix/homecontrol/myhome/device"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

var cpuProfile string

var Cmd = &cobra.Command{
	Use:  "myhome",
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if options.Flags.Quiet {
			options.Flags.Verbose = false
			options.Flags.Debug = false
		}
		hlog.InitWithDebug(options.Flags.Verbose, options.Flags.Debug)
		log := hlog.Logger

		if debug.IsDebuggerAttached() {
			log.Info("Running under debugger (will wait forever)")
			options.Flags.Wait = 0
		}

		if cpuProfile != "" {
			f, err := os.Create(cpuProfile)
			if err != nil {
				log.Error(err, "Failed to create CPU profile")
				return err
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return err
			}
		}

		ctx := logr.NewContext(cmd.Context(), log)
		ctx = options.CommandLineContext(ctx, getVersion())
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cpuProfile != "" {
			pprof.StopCPUProfile()
		}
		global.Cancel(cmd.Context())
		return nil
	},
}

func init() {
	Cmd.PersistentFlags().StringVarP(&cpuProfile, "cpuprofile", "P", "", "write CPU profile to `file`")
	Cmd.PersistentFlags().BoolVarP(&options.Flags.Verbose, "verbose", "v", false, "verbose output")
	Cmd.PersistentFlags().BoolVarP(&options.Flags.Debug, "debug", "d", false, "debug output")
	Cmd.PersistentFlags().BoolVarP(&options.Flags.Quiet, "quiet", "q", false, "errors only")
	Cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")
	Cmd.PersistentFlags().DurationVarP(&options.Flags.MdnsTimeout, "mdns-timeout", "M", options.MDNS_LOOKUP_DEFAULT_TIMEOUT, "timeout for mDNS host lookups")

	Cmd.AddCommand(daemon.Cmd)
	Cmd.AddCommand(ctl.Cmd)
	Cmd.AddCommand(device.SensorCmd)
	Cmd.AddCommand(device.ActuatorCmd)
}

func main() {
	cobra.EnableTraverseRunHooks = true
	err := Cmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
