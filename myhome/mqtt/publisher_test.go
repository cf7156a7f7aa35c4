package mqtt

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/asnowfix/homecontrol/myhome/control"
	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
)

type message struct {
	topic    string
	payload  string
	retained bool
}

type fakeSender struct {
	mutex    sync.Mutex
	messages []message
	fail     bool
}

func (s *fakeSender) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.fail {
		return errors.New("broker gone")
	}
	s.messages = append(s.messages, message{topic, string(payload), retained})
	return nil
}

func TestPublisherTopics(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sender := &fakeSender{}
	p := NewPublisher(testr.New(t), sender, "home/ctl")
	p.Observe(context.Background(), control.Cycle{Outcomes: []control.Outcome{
		{Id: "abc", Datum: datum.New(datum.Float(150), datum.DegreesC, ts), Command: thermostat.CoolTo(100)},
		{Id: "def", Datum: datum.New(datum.Int(-2), datum.DegreesC, ts), Command: thermostat.HeatTo(0), DispatchErr: control.ErrUnpaired},
		{Id: "ghi", ReadErr: errors.New("refused")},
	}})

	want := []message{
		{"home/ctl/abc/datum", "150.0@°C@2024-03-01T12:00:00Z", true},
		{"home/ctl/abc/command", `{"CoolTo":100}`, false},
		{"home/ctl/def/datum", "-2@°C@2024-03-01T12:00:00Z", true},
	}
	if len(sender.messages) != len(want) {
		t.Fatalf("messages = %v", sender.messages)
	}
	for i := range want {
		if sender.messages[i] != want[i] {
			t.Errorf("message %d = %v, want %v", i, sender.messages[i], want[i])
		}
	}
}

func TestPublisherSurvivesFailures(t *testing.T) {
	p := NewPublisher(testr.New(t), &fakeSender{fail: true}, "t")
	p.Observe(context.Background(), control.Cycle{Outcomes: []control.Outcome{
		{Id: "abc", Datum: datum.NewNow(datum.Float(150), datum.DegreesC), Command: thermostat.CoolTo(100)},
	}})
}

func TestParseBroker(t *testing.T) {
	cases := map[string]string{
		"tcp://10.0.0.2:1884": "tcp://10.0.0.2:1884",
		"tcp://broker.local":  "tcp://broker.local:1883",
		"10.0.0.2:1884":       "tcp://10.0.0.2:1884",
		"broker.local":        "tcp://broker.local:1883",
	}
	for in, want := range cases {
		u, err := ParseBroker(in)
		if err != nil || u.String() != want {
			t.Errorf("ParseBroker(%q) = %v, %v; want %s", in, u, err, want)
		}
	}
	if _, err := ParseBroker(""); err == nil {
		t.Error("empty broker accepted")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestEmbeddedBroker(t *testing.T) {
	// the broker logs from its own goroutines after shutdown
	log := logr.Discard()
	ctx, cancel := context.WithCancel(logr.NewContext(context.Background(), log))
	defer cancel()

	port := freePort(t)
	broker, err := Broker(ctx, log, nil, port, nil)
	if err != nil {
		t.Fatal(err)
	}

	client, err := NewClientE(ctx, log, "127.0.0.1:"+strconv.Itoa(broker.Port()), 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	received := make(chan message, 4)
	token := client.mqtt.Subscribe("home/ctl/#", 1, func(_ paho.Client, m paho.Message) {
		received <- message{m.Topic(), string(m.Payload()), m.Retained()}
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	p := NewPublisher(log, broker, "home/ctl")
	p.Observe(ctx, control.Cycle{Outcomes: []control.Outcome{
		{Id: "abc", Datum: datum.NewNow(datum.Float(21.5), datum.DegreesC)},
	}})
	select {
	case m := <-received:
		if m.topic != "home/ctl/abc/datum" {
			t.Errorf("topic = %q", m.topic)
		}
		if d, err := datum.Decode(m.payload); err != nil || d.Unit != datum.DegreesC {
			t.Errorf("payload %q: %v", m.payload, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("inline publication not received")
	}

	if err := client.Publish(ctx, "home/ctl/def/command", []byte(`{"HeatTo":18}`), false); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-received:
		if m.topic != "home/ctl/def/command" || m.payload != `{"HeatTo":18}` {
			t.Errorf("got %v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client publication not received")
	}
}
