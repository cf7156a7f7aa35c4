package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

const MQTT_DEFAULT_TIMEOUT time.Duration = 14 * time.Second

// Client publishes to a remote broker.
type Client struct {
	Id        string
	mqtt      paho.Client
	brokerUrl *url.URL
	timeout   time.Duration
	log       logr.Logger
}

// NewClientE connects to broker: "tcp://host:port", "host:port" or "host".
func NewClientE(ctx context.Context, log logr.Logger, broker string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = MQTT_DEFAULT_TIMEOUT
	}
	clientId := fmt.Sprintf("%s-%s", path.Base(os.Args[0]), uuid.NewString()[:8])
	log = log.WithName("MqttClient")

	brokerUrl, err := ParseBroker(broker)
	if err != nil {
		log.Error(err, "Invalid MQTT broker", "broker", broker)
		return nil, err
	}
	log.Info("Using MQTT broker", "url", brokerUrl.String(), "client_id", clientId)

	opts := paho.NewClientOptions()
	opts.AddBroker(brokerUrl.String())
	opts.SetClientID(clientId)
	opts.SetConnectTimeout(timeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Error(err, "MQTT connection lost", "client_id", clientId)
	})

	c := &Client{
		Id:        clientId,
		mqtt:      paho.NewClient(opts),
		brokerUrl: brokerUrl,
		timeout:   timeout,
		log:       log,
	}

	token := c.mqtt.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", brokerUrl)
	}
	if err := token.Error(); err != nil {
		log.Error(err, "MQTT client failed to connect", "client_id", clientId)
		return nil, err
	}
	log.Info("MQTT client connected", "client_id", clientId)

	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return c, nil
}

func ParseBroker(where string) (*url.URL, error) {
	if strings.Contains(where, "://") {
		u, err := url.Parse(where)
		if err != nil {
			return nil, err
		}
		if u.Port() == "" {
			u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(PRIVATE_PORT))
		}
		return u, nil
	}
	if len(where) == 0 {
		return nil, fmt.Errorf("empty MQTT broker address")
	}
	host, port, err := net.SplitHostPort(where)
	if err != nil {
		host, port = where, strconv.Itoa(PRIVATE_PORT)
	}
	return &url.URL{Scheme: "tcp", Host: net.JoinHostPort(host, port)}, nil
}

func (c *Client) BrokerUrl() *url.URL {
	return c.brokerUrl
}

// Publish sends payload at QoS 1 and waits for the broker's ack.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	token := c.mqtt.Publish(topic, 1, retained, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(c.timeout):
		return fmt.Errorf("timeout publishing to %s", topic)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Close() {
	if c.mqtt.IsConnected() {
		c.mqtt.Disconnect(250 /* milliseconds */)
	}
}
