package daemon

import (
	"context"
	"os"

	"github.com/go-logr/logr"
	"github.com/kardianos/service"
	"github.com/spf13/viper"
)

var serviceConfig = service.Config{
	Name:        "myhome",
	DisplayName: "MyHome",
	Description: "MyHome Daemon: discovers sensors and actuators, polls the sensors and drives the paired actuators",
	Arguments:   []string{"daemon", "run"},
}

// serviceDaemon runs the daemon under the platform service manager, which
// restarts it when it fails to start.
type serviceDaemon struct {
	*daemon
}

func (sd *serviceDaemon) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	go func() {
		sd.err = sd.Run()
		close(sd.done)
		if sd.err != nil {
			logr.FromContextOrDiscard(sd.ctx).Error(sd.err, "Daemon failed")
			os.Exit(1)
		}
	}()
	return nil
}

func load(ctx context.Context, v *viper.Viper) (service.Service, service.Logger, error) {
	log, err := logr.FromContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	config := serviceConfig
	if file := v.ConfigFileUsed(); file != "" {
		config.Arguments = append(config.Arguments, "--config", file)
	}

	s, err := service.New(&serviceDaemon{NewDaemon(ctx, v)}, &config)
	if err != nil {
		log.Error(err, "Failed to create (background) service")
		return nil, nil, err
	}
	logger, err := s.Logger(nil)
	if err != nil {
		log.Error(err, "Failed to create (background) service")
		return nil, nil, err
	}
	return s, logger, err
}
