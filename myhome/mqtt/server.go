package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/asnowfix/homecontrol/internal/mynet"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"

	mochiServer "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

const ZEROCONF_SERVICE = "_mqtt._tcp"

const PRIVATE_PORT = 1883

// Server is the embedded broker. It publishes through its inline client,
// without a network round trip.
type Server struct {
	log   logr.Logger
	mochi *mochiServer.Server
	port  int
}

// Broker starts an embedded broker on port, announced over DNS-SD when
// resolver is not nil. It shuts down when ctx is done.
func Broker(ctx context.Context, log logr.Logger, resolver mynet.Resolver, port int, v *viper.Viper) (*Server, error) {
	log = log.WithName("MqttBroker")
	if port <= 0 {
		port = PRIVATE_PORT
	}

	opts := loadBrokerConfig(ctx, log, v)
	opts.Logger = slog.New(logr.ToSlogHandler(log))
	opts.InlineClient = true

	mqttServer := mochiServer.New(opts)

	// Allow all connections.
	if err := mqttServer.AddHook(new(auth.AllowHook), nil); err != nil {
		log.Error(err, "error adding MQTT auth hook")
		return nil, err
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Address: fmt.Sprintf("0.0.0.0:%d", port),
	})
	if err := mqttServer.AddListener(tcp); err != nil {
		log.Error(err, "error adding TCP listener", "port", port)
		return nil, err
	}
	if err := mqttServer.Serve(); err != nil {
		log.Error(err, "error starting MQTT server")
		return nil, err
	}
	log.Info("Now listening for MQTT connections", "port", port)

	var publication mynet.Publication
	if resolver != nil {
		instance, err := os.Hostname()
		if err != nil {
			instance = "myhome"
		}
		publication, err = resolver.PublishService(ctx, instance, ZEROCONF_SERVICE, mynet.DOMAIN, port, []string{"program=myhome"})
		if err != nil {
			// the broker stays reachable by address
			log.Error(err, "Unable to publish MQTT broker over mDNS")
		}
	}

	go func(log logr.Logger) {
		<-ctx.Done()
		log.Info("Shutting down MQTT broker")
		if publication != nil {
			publication.Shutdown()
		}
		mqttServer.Close()
	}(log.WithName("cleanup"))

	return &Server{log: log, mochi: mqttServer, port: port}, nil
}

func (s *Server) Port() int {
	return s.port
}

// Publish delivers payload to the broker's subscribers (QoS 0).
func (s *Server) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	return s.mochi.Publish(topic, payload, retained, 0)
}

func (s *Server) Clients() int {
	return len(s.mochi.Clients.GetAll())
}
