// Package applicability implements the Applicability Table (C1): a
// static mapping from power-source identifier to per-kind Y/N, loaded at
// startup and cached in process memory (spec §4.1).
package applicability

import (
	"sync"

	"github.com/weldcfg/configurator/internal/core"
)

// Entry is the Y/N applicability row for one power source GIN, in the
// serialized form the ConfigMap/YAML source carries.
type Entry struct {
	PowerSourceGIN string          `yaml:"power_source_gin"`
	Feeder         bool            `yaml:"feeder"`
	Cooler         bool            `yaml:"cooler"`
	Interconnector bool            `yaml:"interconnector"`
	Torch          bool            `yaml:"torch"`
	Accessory      bool            `yaml:"accessory"`
}

func (e Entry) toApplicability() core.Applicability {
	return core.Applicability{Applicable: map[core.ComponentKind]bool{
		core.KindFeeder:         e.Feeder,
		core.KindCooler:         e.Cooler,
		core.KindInterconnector: e.Interconnector,
		core.KindTorch:          e.Torch,
		core.KindAccessory:      e.Accessory,
	}}
}

// Table is an in-process, read-only-after-load implementation of
// core.ApplicabilityTable. Reload discipline is implementation freedom
// (spec §4.1); Table supports atomic swap via Reload so a watcher (see
// Loader) can refresh it without holding readers.
type Table struct {
	mu   sync.RWMutex
	rows map[string]core.Applicability
}

// NewTable builds a Table from a decoded entry list, e.g. loaded from a
// ConfigMap or a local YAML file by a Loader.
func NewTable(entries []Entry) *Table {
	t := &Table{rows: make(map[string]core.Applicability, len(entries))}
	t.Reload(entries)
	return t
}

// Reload atomically replaces the table's contents. Safe to call
// concurrently with Lookup; in-flight lookups observe either the old or
// the new table, never a partial one.
func (t *Table) Reload(entries []Entry) {
	rows := make(map[string]core.Applicability, len(entries))
	for _, e := range entries {
		rows[e.PowerSourceGIN] = e.toApplicability()
	}
	t.mu.Lock()
	t.rows = rows
	t.mu.Unlock()
}

// Lookup returns the Applicability for powerSourceGIN, or all-Y if the
// identifier is unknown (spec §3/§4.1).
func (t *Table) Lookup(powerSourceGIN string) core.Applicability {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if a, ok := t.rows[powerSourceGIN]; ok {
		return a
	}
	return core.DefaultApplicability()
}

var _ core.ApplicabilityTable = (*Table)(nil)
