// Package hooks models the per-request page lifecycle: ordered stages,
// each with a priority-sorted list of named callbacks, plus string filters.
package hooks

import (
	"context"
	"sort"
	"sync"
)

// Stage is one step of a page render
type Stage int

const (
	StageSetupTheme Stage = iota
	StageInit
	StageTemplateRedirect
	StageEnqueueScripts
	StageHead
	StageFooter
)

// Stages lists every stage in execution order
var Stages = []Stage{
	StageSetupTheme,
	StageInit,
	StageTemplateRedirect,
	StageEnqueueScripts,
	StageHead,
	StageFooter,
}

func (s Stage) String() string {
	switch s {
	case StageSetupTheme:
		return "after_setup_theme"
	case StageInit:
		return "init"
	case StageTemplateRedirect:
		return "template_redirect"
	case StageEnqueueScripts:
		return "enqueue_scripts"
	case StageHead:
		return "head"
	case StageFooter:
		return "footer"
	default:
		return "unknown"
	}
}

// DefaultPriority is used by callbacks that don't care about ordering
const DefaultPriority = 10

// Callback runs during a stage
type Callback func(ctx context.Context, p *Page)

// FilterFunc rewrites a value
type FilterFunc func(value string, p *Page) string

type action struct {
	name     string
	priority int
	seq      int
	cb       Callback
}

type filter struct {
	name     string
	priority int
	seq      int
	fn       FilterFunc
}

// Lifecycle holds the callbacks registered for one request
type Lifecycle struct {
	mu      sync.Mutex
	seq     int
	actions map[Stage][]action
	filters map[string][]filter
}

// New creates an empty lifecycle
func New() *Lifecycle {
	return &Lifecycle{
		actions: make(map[Stage][]action),
		filters: make(map[string][]filter),
	}
}

// On registers cb for stage. Lower priorities run first; equal
// priorities run in registration order.
func (l *Lifecycle) On(stage Stage, name string, priority int, cb Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.actions[stage] = append(l.actions[stage], action{name: name, priority: priority, seq: l.seq, cb: cb})
}

// Remove unregisters every callback called name from stage
func (l *Lifecycle) Remove(stage Stage, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.actions[stage][:0]
	removed := false
	for _, a := range l.actions[stage] {
		if a.name == name {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	l.actions[stage] = kept
	return removed
}

// Has reports whether a callback called name is registered for stage
func (l *Lifecycle) Has(stage Stage, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.actions[stage] {
		if a.name == name {
			return true
		}
	}
	return false
}

// Callbacks returns the callback names of stage in execution order
func (l *Lifecycle) Callbacks(stage Stage) []string {
	sorted := l.sortedActions(stage)
	names := make([]string, 0, len(sorted))
	for _, a := range sorted {
		names = append(names, a.name)
	}
	return names
}

// Run executes the callbacks of stage. The list is snapshotted when the
// stage starts; removals made by a callback affect later stages only.
// Run stops as soon as the page is halted.
func (l *Lifecycle) Run(ctx context.Context, stage Stage, p *Page) {
	for _, a := range l.sortedActions(stage) {
		if p.Halted() || ctx.Err() != nil {
			return
		}
		a.cb(ctx, p)
	}
}

// AddFilter registers fn on the filter called name
func (l *Lifecycle) AddFilter(name, id string, priority int, fn FilterFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.filters[name] = append(l.filters[name], filter{name: id, priority: priority, seq: l.seq, fn: fn})
}

// RemoveFilter unregisters the filter callback id from name
func (l *Lifecycle) RemoveFilter(name, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.filters[name][:0]
	removed := false
	for _, f := range l.filters[name] {
		if f.name == id {
			removed = true
			continue
		}
		kept = append(kept, f)
	}
	l.filters[name] = kept
	return removed
}

// HasFilter reports whether anything is registered on the filter
func (l *Lifecycle) HasFilter(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.filters[name]) > 0
}

// Apply passes value through every callback of the filter in order
func (l *Lifecycle) Apply(name, value string, p *Page) string {
	l.mu.Lock()
	fs := append([]filter(nil), l.filters[name]...)
	l.mu.Unlock()

	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].priority != fs[j].priority {
			return fs[i].priority < fs[j].priority
		}
		return fs[i].seq < fs[j].seq
	})

	for _, f := range fs {
		value = f.fn(value, p)
	}
	return value
}

func (l *Lifecycle) sortedActions(stage Stage) []action {
	l.mu.Lock()
	as := append([]action(nil), l.actions[stage]...)
	l.mu.Unlock()

	sort.SliceStable(as, func(i, j int) bool {
		if as[i].priority != as[j].priority {
			return as[i].priority < as[j].priority
		}
		return as[i].seq < as[j].seq
	})
	return as
}
