package device

import (
	"context"
	"strings"
	"testing"

	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/endpoint"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
)

func TestFeedUpdatesReading(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	reading := endpoint.NewReading(datum.Float(21.5), datum.DegreesC)

	feed(ctx, strings.NewReader("22\n\nnot-a-number\n23.5\n"), reading)

	d := reading.Datum()
	if !d.Value.Equal(datum.Float(23.5)) {
		t.Errorf("value = %v, want 23.5", d.Value)
	}
	if d.Unit != datum.DegreesC {
		t.Errorf("unit = %v, want °C", d.Unit)
	}
}

func TestEndpointId(t *testing.T) {
	f := endpointFlags{Id: "abc"}
	id, err := f.id()
	if err != nil || id != devices.Id("abc") {
		t.Errorf("id() = %q, %v; want abc", id, err)
	}

	f.Id = ""
	id, err = f.id()
	if err != nil || len(id) == 0 {
		t.Errorf("id() = %q, %v; want a generated id", id, err)
	}
	if _, err := devices.ParseId(devices.InstanceName("temperature", id) + "._sensor._tcp.local."); err != nil {
		t.Errorf("generated id %q does not round trip: %v", id, err)
	}

	for _, bad := range []string{"a_b", "a.b"} {
		f.Id = bad
		if _, err := f.id(); err == nil {
			t.Errorf("id() with %q: expected an error", bad)
		}
	}
}

func TestServeRejectsBadKind(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	f := endpointFlags{Kind: "bad_kind", Listen: "127.0.0.1:0"}
	if err := f.serve(ctx, devices.Sensor, nil); err == nil {
		t.Fatal("serve with kind containing '_': expected an error")
	}
}
