// Package contacts is the controller's address book: where each known
// device can be reached, per role.
package contacts

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/go-logr/logr"
)

type Contact struct {
	Id      devices.Id      `json:"id" yaml:"id"`
	Role    devices.Role    `json:"role" yaml:"role"`
	Address devices.Address `json:"address" yaml:"address"`
}

// partition is one role's half of the registry, with its own lock.
type partition struct {
	mutex     sync.RWMutex
	addresses map[devices.Id]devices.Address
}

// Registry is safe for concurrent use. Sensors and actuators are locked
// independently, so discovery of one never waits on the other.
type Registry struct {
	log        logr.Logger
	partitions [2]partition
	observers  []func(role devices.Role, size int)
}

func NewRegistry(ctx context.Context) *Registry {
	r := &Registry{
		log: logr.FromContextOrDiscard(ctx).WithName("contacts"),
	}
	for i := range r.partitions {
		r.partitions[i].addresses = make(map[devices.Id]devices.Address)
	}
	return r
}

// OnChange registers f to be called (without any lock held) after each
// upsert with the new size of the partition. Not safe to call once the
// registry is shared.
func (r *Registry) OnChange(f func(role devices.Role, size int)) {
	r.observers = append(r.observers, f)
}

// partition panics on a role other than Sensor or Actuator: that is a
// programming error, not a runtime condition.
func (r *Registry) partition(role devices.Role) *partition {
	if int(role) >= len(r.partitions) {
		panic(fmt.Sprintf("contacts: unknown role %d", uint32(role)))
	}
	return &r.partitions[role]
}

// Upsert stores addr for id, replacing any previous address. It reports
// whether anything changed.
func (r *Registry) Upsert(id devices.Id, role devices.Role, addr devices.Address) bool {
	p := r.partition(role)
	p.mutex.Lock()
	previous, exists := p.addresses[id]
	p.addresses[id] = addr
	size := len(p.addresses)
	p.mutex.Unlock()

	changed := !exists || previous != addr
	if changed {
		r.log.Info("Upserted contact", "id", id, "role", role, "address", addr.String(), "previous", previous.String())
	} else {
		r.log.V(1).Info("Contact unchanged", "id", id, "role", role, "address", addr.String())
	}
	for _, f := range r.observers {
		f(role, size)
	}
	return changed
}

func (r *Registry) Get(id devices.Id, role devices.Role) (devices.Address, bool) {
	p := r.partition(role)
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	addr, exists := p.addresses[id]
	return addr, exists
}

// Snapshot copies the partition, sorted by id. Callers iterate the copy
// while network I/O happens, never the live map.
func (r *Registry) Snapshot(role devices.Role) []Contact {
	p := r.partition(role)
	p.mutex.RLock()
	contacts := make([]Contact, 0, len(p.addresses))
	for id, addr := range p.addresses {
		contacts = append(contacts, Contact{Id: id, Role: role, Address: addr})
	}
	p.mutex.RUnlock()

	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Id < contacts[j].Id
	})
	return contacts
}

func (r *Registry) Len(role devices.Role) int {
	p := r.partition(role)
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return len(p.addresses)
}
