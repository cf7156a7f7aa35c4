package mqtt

import (
	"context"
	"fmt"

	"github.com/asnowfix/homecontrol/myhome/control"
	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"

	"github.com/go-logr/logr"
)

// Sender is implemented by both the embedded broker and the client.
type Sender interface {
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
}

// Publisher fans cycle outcomes out on "<topic>/<id>/datum" (retained,
// wire format) and "<topic>/<id>/command" (JSON).
type Publisher struct {
	log    logr.Logger
	sender Sender
	topic  string
}

func NewPublisher(log logr.Logger, sender Sender, topic string) *Publisher {
	return &Publisher{
		log:    log.WithName("MqttPublisher"),
		sender: sender,
		topic:  topic,
	}
}

func (p *Publisher) DatumTopic(id devices.Id) string {
	return fmt.Sprintf("%s/%s/datum", p.topic, id)
}

func (p *Publisher) CommandTopic(id devices.Id) string {
	return fmt.Sprintf("%s/%s/command", p.topic, id)
}

// Observe implements control.Observer. Publication failures are logged,
// never returned to the loop.
func (p *Publisher) Observe(ctx context.Context, c control.Cycle) {
	for _, o := range c.Outcomes {
		if !o.Read() {
			continue
		}
		if err := p.sender.Publish(ctx, p.DatumTopic(o.Id), []byte(datum.Encode(o.Datum)), true); err != nil {
			p.log.Error(err, "Unable to publish datum", "id", o.Id)
			continue
		}
		if !o.Dispatched() {
			continue
		}
		payload, err := thermostat.Marshal(o.Command)
		if err != nil {
			p.log.Error(err, "Unable to encode command", "id", o.Id, "command", o.Command.String())
			continue
		}
		if err := p.sender.Publish(ctx, p.CommandTopic(o.Id), payload, false); err != nil {
			p.log.Error(err, "Unable to publish command", "id", o.Id)
		}
	}
}
