package control

import (
	"sort"
	"sync"

	"github.com/asnowfix/homecontrol/pkg/datum"
	"github.com/asnowfix/homecontrol/pkg/devices"
	"github.com/asnowfix/homecontrol/pkg/devices/thermostat"
)

const DEFAULT_HISTORY_DEPTH = 32

type Entry struct {
	Datum   datum.Datum `json:"datum" yaml:"datum"`
	Command string      `json:"command,omitempty" yaml:"command,omitempty"`
}

// History keeps the last readings of every sensor, in memory only.
type History struct {
	mutex   sync.RWMutex
	depth   int
	entries map[devices.Id][]Entry
}

func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DEFAULT_HISTORY_DEPTH
	}
	return &History{
		depth:   depth,
		entries: make(map[devices.Id][]Entry),
	}
}

// Record appends d (and the command it triggered, if any), dropping the
// oldest entry beyond the configured depth.
func (h *History) Record(id devices.Id, d datum.Datum, cmd thermostat.Command) {
	e := Entry{Datum: d}
	if cmd != nil {
		e.Command = cmd.String()
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	entries := append(h.entries[id], e)
	if len(entries) > h.depth {
		entries = entries[len(entries)-h.depth:]
	}
	h.entries[id] = entries
}

// Get returns a copy of the entries of id, oldest first.
func (h *History) Get(id devices.Id) []Entry {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	entries, ok := h.entries[id]
	if !ok {
		return nil
	}
	return append([]Entry(nil), entries...)
}

// Latest returns the most recent entry of id.
func (h *History) Latest(id devices.Id) (Entry, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	entries := h.entries[id]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

func (h *History) Ids() []devices.Id {
	h.mutex.RLock()
	ids := make([]devices.Id, 0, len(h.entries))
	for id := range h.entries {
		ids = append(ids, id)
	}
	h.mutex.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (h *History) All() map[devices.Id][]Entry {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	all := make(map[devices.Id][]Entry, len(h.entries))
	for id, entries := range h.entries {
		all[id] = append([]Entry(nil), entries...)
	}
	return all
}
