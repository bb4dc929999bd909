// Package hook lets other components observe or veto quest lifecycle
// transitions without the quest service importing them.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInterrupt stops the chain. For Before* events it also vetoes the
// transition.
var ErrInterrupt = errors.New("hook interrupted")

// Fn handles one event. It returns the (possibly replaced) payload.
type Fn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type entry struct {
	priority int
	name     string
	fn       Fn
}

// Center holds hook registrations keyed by event.
type Center struct {
	mu    sync.RWMutex
	hooks map[string][]entry
}

// NewCenter creates an empty Center.
func NewCenter() *Center {
	return &Center{hooks: make(map[string][]entry)}
}

// Register adds fn for event. Lower priority runs first; equal priorities
// keep registration order. name is the handle for Unregister.
func (c *Center) Register(event string, priority int, name string, fn Fn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := append(c.hooks[event], entry{priority: priority, name: name, fn: fn})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	c.hooks[event] = entries
}

// Unregister removes every hook called name from event.
func (c *Center) Unregister(event, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[event] = without(c.hooks[event], name)
}

// UnregisterAll removes every hook called name from all events.
func (c *Center) UnregisterAll(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for event, entries := range c.hooks {
		c.hooks[event] = without(entries, name)
	}
}

func without(entries []entry, name string) []entry {
	kept := entries[:0]
	for _, e := range entries {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	return kept
}

// Len reports how many hooks are registered for event.
func (c *Center) Len(event string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hooks[event])
}

// Trigger runs the hooks for event in priority order, threading data
// through each. Only ErrInterrupt stops the chain and is returned; other
// errors are skipped so one faulty observer cannot block the rest.
func (c *Center) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	if c == nil {
		return data, nil
	}
	c.mu.RLock()
	entries := make([]entry, len(c.hooks[event]))
	copy(entries, c.hooks[event])
	c.mu.RUnlock()

	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err == nil {
			data = out
		}
	}
	return data, nil
}

// Quest lifecycle events.
const (
	// OnSetGenerated carries the new []model.PlayerQuest of one set.
	OnSetGenerated = "on_set_generated"
	// OnQuestComplete carries a *model.PlayerQuest that just hit its target.
	OnQuestComplete = "on_quest_complete"
	// BeforeQuestClaim carries the *model.PlayerQuest about to be claimed.
	// Returning ErrInterrupt rejects the claim.
	BeforeQuestClaim = "before_quest_claim"
	// AfterQuestClaim carries the claim result.
	AfterQuestClaim = "after_quest_claim"
)
