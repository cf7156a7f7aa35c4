package options

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/asnowfix/homecontrol/internal/global"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v2"
)

const MDNS_LOOKUP_DEFAULT_TIMEOUT time.Duration = 7 * time.Second

const DEVICE_DEFAULT_TIMEOUT time.Duration = 5 * time.Second

const COMMAND_DEFAULT_TIMEOUT time.Duration = 0 // No timeout by default (wait indefinitely)

const DEFAULT_CONTROLLER_URL = "http://localhost:8890"

var Flags struct {
	Verbose       bool
	Debug         bool
	Quiet         bool
	Json          bool
	Config        string        // the value taken by --config / -c
	Wait          time.Duration // the value taken by --wait / -w
	DeviceTimeout time.Duration // the value taken by --device-timeout / -t
	MdnsTimeout   time.Duration // the value taken by --mdns-timeout / -M
	Controller    string        // the value taken by --controller / -C
}

// CommandLineContext returns a context cancelled on SIGINT/SIGTERM (or
// after --wait), carrying its cancel function, the process-wide context
// and the program version.
func CommandLineContext(ctx context.Context, version string) context.Context {
	var cancel context.CancelFunc

	// Create the process-wide context that background services can use
	processCtx, processCancel := context.WithCancel(ctx)

	if Flags.Wait > 0 {
		ctx, cancel = context.WithTimeout(processCtx, Flags.Wait)
	} else {
		ctx, cancel = context.WithCancel(processCtx)
	}
	ctx = context.WithValue(ctx, global.CancelKey, cancel)
	ctx = context.WithValue(ctx, global.ProcessContextKey, processCtx)
	ctx = context.WithValue(ctx, global.VersionKey, version)

	go func() {
		log := logr.FromContextOrDiscard(ctx)
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signals)
		select {
		case <-signals:
			log.Info("Received signal")
		case <-processCtx.Done():
		}
		// Cancel both the operation context and the process context
		cancel()
		processCancel()
	}()
	return ctx
}

func PrintResult(out any) error {
	if Flags.Json {
		s, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(s))
	} else {
		s, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Print(string(s))
	}
	return nil
}

// GetJSON fetches path from the controller's HTTP server into out.
func GetJSON(ctx context.Context, path string, out any) error {
	url := strings.TrimRight(Flags.Controller, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("controller unreachable at %s: %w", Flags.Controller, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&e)
		return fmt.Errorf("GET %s: %s %s", url, res.Status, e.Error)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
