// Package activator is the process-wide snapshot activator: an atomic swap
// of the active RuntimeSnapshot with last-known-good retention, plus
// degraded/recovered event emission.
package activator

import (
	"sync"

	"github.com/openclaw/gateway/internal/gwconfig"
	"github.com/openclaw/gateway/internal/snapshot"
)

// Trigger names the three activation call sites (spec.md §4.5).
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerReload  Trigger = "reload"
	TriggerRPC     Trigger = "rpc"
)

// Event/warning codes, stable strings (spec.md §6).
const (
	EventDegraded  = "SECRETS_RELOADER_DEGRADED"
	EventRecovered = "SECRETS_RELOADER_RECOVERED"
)

// Activator owns exactly one mutable slot: the active RuntimeSnapshot plus
// a degraded flag (spec.md §3, "Process-wide state"). Activate is
// serialized with mu so two concurrent successful activations leave exactly
// one "last" snapshot observable, and degraded/recovered transitions each
// fire exactly once (spec.md §5).
type Activator struct {
	mu sync.Mutex

	active   *snapshot.RuntimeSnapshot
	degraded bool

	onDegraded  func(code string)
	onRecovered func(code string)
}

// New constructs an Activator. onDegraded/onRecovered may be nil; both are
// invoked synchronously, under the activator's lock, exactly once per
// transition.
func New(onDegraded, onRecovered func(code string)) *Activator {
	initMetrics()
	return &Activator{onDegraded: onDegraded, onRecovered: onRecovered}
}

// Activate swaps in snap as the active snapshot. On success it clears
// degraded (emitting EventRecovered exactly once if it was set). On
// failure during TriggerStartup the error propagates and no snapshot
// becomes active; on failure during any other trigger, the previous
// snapshot is kept and EventDegraded is emitted exactly once per
// transition into degraded state (spec.md §4.5).
func (a *Activator) Activate(trigger Trigger, build func() (*snapshot.RuntimeSnapshot, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap, err := build()
	if err != nil {
		recordActivation(string(trigger), "failure")
		if trigger == TriggerStartup {
			return err
		}
		if !a.degraded {
			a.degraded = true
			setDegradedGauge(true)
			if a.onDegraded != nil {
				a.onDegraded(EventDegraded)
			}
		}
		return err
	}

	a.active = snap
	recordActivation(string(trigger), "success")
	recordWarnings(snap.Warnings)

	if a.degraded {
		a.degraded = false
		setDegradedGauge(false)
		if a.onRecovered != nil {
			a.onRecovered(EventRecovered)
		}
	}
	return nil
}

// GetActive returns an immutable view of the active snapshot: a deep copy,
// so no consumer can mutate activator-owned state through the returned
// value (spec.md §4.5, "no consumer may mutate it"). Returns nil if no
// snapshot has ever been successfully activated.
func (a *Activator) GetActive() *snapshot.RuntimeSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == nil {
		return nil
	}
	return cloneSnapshot(a.active)
}

// Degraded reports whether the activator is currently serving a
// last-known-good snapshot after a failed reload.
func (a *Activator) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded
}

// Clear resets the activator to its pre-activation state. Test-only
// (spec.md §3).
func (a *Activator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = nil
	a.degraded = false
	setDegradedGauge(false)
}

func cloneSnapshot(snap *snapshot.RuntimeSnapshot) *snapshot.RuntimeSnapshot {
	clone := *snap
	clone.Config = gwconfig.Tree(gwconfig.DeepCopy(map[string]any(snap.Config)).(map[string]any))

	clone.AuthStores = make([]snapshot.AuthStoreEntry, len(snap.AuthStores))
	for i, entry := range snap.AuthStores {
		clone.AuthStores[i] = snapshot.AuthStoreEntry{
			AgentDir: entry.AgentDir,
			Store:    gwconfig.Tree(gwconfig.DeepCopy(map[string]any(entry.Store)).(map[string]any)),
		}
	}

	clone.Warnings = append([]snapshot.Warning(nil), snap.Warnings...)
	return &clone
}
