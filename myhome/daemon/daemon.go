package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/asnowfix/homecontrol/hlog"
	"github.com/asnowfix/homecontrol/internal/global"
	"github.com/asnowfix/homecontrol/internal/mynet"
	"github.com/asnowfix/homecontrol/myhome/config"
	"github.com/asnowfix/homecontrol/myhome/contacts"
	"github.com/asnowfix/homecontrol/myhome/control"
	"github.com/asnowfix/homecontrol/myhome/ctl/options"
	"github.com/asnowfix/homecontrol/myhome/daemon/watch"
	"github.com/asnowfix/homecontrol/myhome/metrics"
	"github.com/asnowfix/homecontrol/myhome/mqtt"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/transport"

	"github.com/go-logr/logr"
	"github.com/kardianos/service"
	"github.com/sourcegraph/conc"
	"github.com/spf13/viper"
)

type daemon struct {
	ctx    context.Context
	cancel context.CancelFunc
	v      *viper.Viper
	done   chan struct{}
	err    error
}

func NewDaemon(ctx context.Context, v *viper.Viper) *daemon {
	ctx, cancel := context.WithCancel(ctx)
	return &daemon{
		ctx:    ctx,
		cancel: cancel,
		v:      v,
		done:   make(chan struct{}),
	}
}

func (d *daemon) Stop(s service.Service) error {
	d.cancel()
	<-d.done
	return nil
}

// Run starts every component and blocks until the daemon's context is done.
func (d *daemon) Run() error {
	log := logr.FromContextOrDiscard(d.ctx)

	cfg, err := config.LoadFromViper(d.v)
	if err != nil {
		log.Error(err, "Invalid configuration", "file", d.v.ConfigFileUsed())
		return err
	}
	log.Info("Starting MyHome daemon", "version", global.Version(d.ctx), "config", d.v.ConfigFileUsed(), "interval", cfg.Controller.Interval, "workers", cfg.Controller.Workers)

	resolver := mynet.MyResolver(log.WithName("mynet.Resolver"), options.Flags.MdnsTimeout)

	m := metrics.New()
	registry := contacts.NewRegistry(logr.NewContext(d.ctx, log))
	registry.OnChange(m.ContactsChanged)

	observers := []control.Observer{m}

	var sender mqtt.Sender
	if cfg.Mqtt.Embedded {
		log.Info("Starting embedded MQTT broker", "port", cfg.Mqtt.Port)
		broker, err := mqtt.Broker(d.ctx, log, resolver, cfg.Mqtt.Port, d.v)
		if err != nil {
			log.Error(err, "Failed to start embedded MQTT broker")
			return err
		}
		sender = broker
	} else if cfg.Mqtt.Broker != "" {
		mc, err := mqtt.NewClientE(d.ctx, log, cfg.Mqtt.Broker, 0)
		if err != nil {
			log.Error(err, "Failed to initialize MQTT client", "broker", cfg.Mqtt.Broker)
			return err
		}
		defer mc.Close()
		sender = mc
	} else {
		log.Info("MQTT publication disabled")
	}
	if sender != nil {
		observers = append(observers, mqtt.NewPublisher(log.WithName("mqtt.Publisher"), sender, cfg.Mqtt.Topic))
	}

	history := control.NewHistory(cfg.Controller.History)
	loop := control.NewLoop(logr.NewContext(d.ctx, log), cfg.Loop(), registry, transport.NewClient(cfg.Controller.Timeout), history, observers...)

	if cfg.Http.Port > 0 {
		httpAddr := fmt.Sprintf(":%d", cfg.Http.Port)
		exporter := metrics.NewExporter(log.WithName("metrics"), httpAddr, m, registry, history)
		if err := exporter.Start(); err != nil {
			log.Error(err, "Failed to start HTTP server", "addr", httpAddr)
			return err
		}
		defer exporter.Stop()
		log.Info("HTTP server started", "addr", exporter.Addr())
	} else {
		log.Info("HTTP server disabled")
	}

	var wg conc.WaitGroup
	for _, role := range devices.Roles {
		agent := watch.NewAgent(logr.NewContext(d.ctx, log), role, cfg.Discovery.Domain, resolver, registry, watch.WithRecordHook(m.RecordBrowsed))
		wg.Go(func() {
			err := agent.Run(d.ctx)
			var de *watch.DiscoveryError
			if errors.As(err, &de) {
				// the other agent and the loop keep going
				log.Error(err, "Discovery agent stopped", "role", de.Role.String(), "service", de.Service)
			}
		})
	}
	wg.Go(func() {
		hlog.ErrorIfNotCanceled(log, loop.Run(d.ctx), "Control loop stopped")
	})

	log.Info("Running")
	<-d.ctx.Done()
	log.Info("Shutting down")
	wg.Wait()
	return nil
}
