package contacts

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
)

func newRegistry(t *testing.T) *Registry {
	return NewRegistry(logr.NewContext(context.Background(), testr.New(t)))
}

func TestUpsertIdempotent(t *testing.T) {
	r := newRegistry(t)
	addr := devices.Address{Host: "127.0.0.1", Port: 9001}

	if !r.Upsert("abc", devices.Sensor, addr) {
		t.Error("first upsert should report a change")
	}
	if r.Upsert("abc", devices.Sensor, addr) {
		t.Error("repeated upsert should not report a change")
	}
	if r.Len(devices.Sensor) != 1 {
		t.Errorf("len = %d", r.Len(devices.Sensor))
	}
	got, ok := r.Get("abc", devices.Sensor)
	if !ok || got != addr {
		t.Errorf("got %v %v", got, ok)
	}
}

func TestUpsertOverwrites(t *testing.T) {
	r := newRegistry(t)
	r.Upsert("abc", devices.Sensor, devices.Address{Host: "10.0.0.1", Port: 1})
	r.Upsert("abc", devices.Sensor, devices.Address{Host: "10.0.0.2", Port: 2})
	got, _ := r.Get("abc", devices.Sensor)
	if got != (devices.Address{Host: "10.0.0.2", Port: 2}) {
		t.Errorf("got %v", got)
	}
}

func TestRolesAreIndependent(t *testing.T) {
	r := newRegistry(t)
	sensor := devices.Address{Host: "127.0.0.1", Port: 9001}
	actuator := devices.Address{Host: "127.0.0.1", Port: 9002}
	r.Upsert("abc", devices.Sensor, sensor)

	if _, ok := r.Get("abc", devices.Actuator); ok {
		t.Error("sensor upsert leaked into actuators")
	}
	r.Upsert("abc", devices.Actuator, actuator)
	if got, _ := r.Get("abc", devices.Sensor); got != sensor {
		t.Errorf("sensor address changed to %v", got)
	}
	if got, _ := r.Get("abc", devices.Actuator); got != actuator {
		t.Errorf("actuator address = %v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := newRegistry(t)
	r.Upsert("b", devices.Sensor, devices.Address{Host: "h", Port: 2})
	r.Upsert("a", devices.Sensor, devices.Address{Host: "h", Port: 1})

	snap := r.Snapshot(devices.Sensor)
	if len(snap) != 2 || snap[0].Id != "a" || snap[1].Id != "b" {
		t.Fatalf("snapshot = %v", snap)
	}
	r.Upsert("c", devices.Sensor, devices.Address{Host: "h", Port: 3})
	if len(snap) != 2 {
		t.Error("snapshot changed after upsert")
	}
	if len(r.Snapshot(devices.Actuator)) != 0 {
		t.Error("actuator snapshot should be empty")
	}
}

func TestOnChange(t *testing.T) {
	r := newRegistry(t)
	sizes := map[devices.Role]int{}
	r.OnChange(func(role devices.Role, size int) { sizes[role] = size })
	r.Upsert("a", devices.Sensor, devices.Address{Host: "h", Port: 1})
	r.Upsert("b", devices.Sensor, devices.Address{Host: "h", Port: 2})
	r.Upsert("a", devices.Actuator, devices.Address{Host: "h", Port: 3})
	if sizes[devices.Sensor] != 2 || sizes[devices.Actuator] != 1 {
		t.Errorf("sizes = %v", sizes)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := newRegistry(t)
	var wg sync.WaitGroup
	for _, role := range devices.Roles {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(role devices.Role, w int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					id := devices.Id(fmt.Sprintf("dev-%d", i%10))
					r.Upsert(id, role, devices.Address{Host: "h", Port: w*1000 + i})
					r.Get(id, role)
					r.Snapshot(role)
				}
			}(role, w)
		}
	}
	wg.Wait()
	for _, role := range devices.Roles {
		if r.Len(role) != 10 {
			t.Errorf("%v: len = %d", role, r.Len(role))
		}
	}
}

func TestUnknownRolePanics(t *testing.T) {
	r := newRegistry(t)
	defer func() {
		if recover() == nil {
			t.Error("Upsert with an unknown role did not panic")
		}
		if r.Len(devices.Sensor) != 0 || r.Len(devices.Actuator) != 0 {
			t.Error("unknown role was stored")
		}
	}()
	r.Upsert("a", devices.Role(2), devices.Address{Host: "h", Port: 1})
}
