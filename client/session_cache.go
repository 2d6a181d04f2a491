package client

import (
	"fmt"
	"maps"
	"sync"

	"github.com/goliatone/go-folio-auth/token"
)

// EditKind names the kind of entity being edited.
type EditKind string

const (
	EditProject EditKind = "project"
	EditSkill   EditKind = "skill"
	EditProfile EditKind = "profile"
)

func (k EditKind) Valid() bool {
	switch k {
	case EditProject, EditSkill, EditProfile:
		return true
	}
	return false
}

// EditTarget is the entity currently open for editing.
type EditTarget struct {
	Kind   EditKind
	Entity any
}

// EditingChange is sent to editing subscribers. Active is false when the
// target was cleared.
type EditingChange struct {
	Target EditTarget
	Active bool
}

type editingEntry struct {
	id uint64
	fn func(EditingChange)
}

// SessionCache holds per session UI state: the edit target, page state and
// draft form fields. It lives in memory only and is cleared when the user
// signs out or another user signs in.
type SessionCache struct {
	mu         sync.RWMutex
	target     *EditTarget
	pageState  map[string]any
	formFields map[string]any
	listeners  []editingEntry
	nextID     uint64

	subMu sync.Mutex
	sub   Subscription
}

func NewSessionCache() *SessionCache {
	return &SessionCache{
		pageState:  map[string]any{},
		formFields: map[string]any{},
	}
}

// StartEditing clears any current target, then sets kind/entity as the new
// one. Subscribers see the clear before the start.
func (c *SessionCache) StartEditing(kind EditKind, entity any) error {
	if !kind.Valid() {
		return token.WithCause(token.WithMessage(token.ErrValidationFailed, fmt.Sprintf("unknown edit kind %q", kind)), nil, map[string]any{
			"kind": string(kind),
		})
	}

	c.ClearEditing()

	target := EditTarget{Kind: kind, Entity: entity}
	c.mu.Lock()
	c.target = &target
	listeners := c.editingListenersLocked()
	c.mu.Unlock()

	c.notifyEditing(EditingChange{Target: target, Active: true}, listeners)
	return nil
}

// ClearEditing drops the edit target. Subscribers are only notified when a
// target was set.
func (c *SessionCache) ClearEditing() {
	c.mu.Lock()
	if c.target == nil {
		c.mu.Unlock()
		return
	}
	prev := *c.target
	c.target = nil
	listeners := c.editingListenersLocked()
	c.mu.Unlock()

	c.notifyEditing(EditingChange{Target: prev}, listeners)
}

// IsEditing reports whether an entity of kind is being edited.
func (c *SessionCache) IsEditing(kind EditKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target != nil && c.target.Kind == kind
}

func (c *SessionCache) EditTarget() (EditTarget, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.target == nil {
		return EditTarget{}, false
	}
	return *c.target, true
}

func (c *SessionCache) SetPageState(key string, value any) {
	c.mu.Lock()
	c.pageState[key] = value
	c.mu.Unlock()
}

func (c *SessionCache) GetPageState(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.pageState[key]
	return v, ok
}

func (c *SessionCache) SetFormField(name string, value any) {
	c.mu.Lock()
	c.formFields[name] = value
	c.mu.Unlock()
}

func (c *SessionCache) GetFormField(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.formFields[name]
	return v, ok
}

// FormFields returns a copy of all draft fields.
func (c *SessionCache) FormFields() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.formFields)
}

func (c *SessionCache) ClearFormFields() {
	c.mu.Lock()
	clear(c.formFields)
	c.mu.Unlock()
}

// Reset clears the edit target, page state and form fields.
func (c *SessionCache) Reset() {
	c.ClearEditing()

	c.mu.Lock()
	clear(c.pageState)
	clear(c.formFields)
	c.mu.Unlock()
}

// OnEditingChange registers fn for edit target changes.
func (c *SessionCache) OnEditingChange(fn func(EditingChange)) Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, editingEntry{id: id, fn: fn})
	c.mu.Unlock()

	return &subscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, entry := range c.listeners {
			if entry.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}}
}

// Attach clears the cache whenever state moves to anonymous or to a
// different user. A previous attachment is released.
func (c *SessionCache) Attach(state *AuthState) {
	sub := state.Subscribe(func(change Change) {
		if shouldReset(change) {
			c.Reset()
		}
	})

	c.subMu.Lock()
	prev := c.sub
	c.sub = sub
	c.subMu.Unlock()

	if prev != nil {
		prev.Unsubscribe()
	}
}

// Close detaches the cache from its AuthState.
func (c *SessionCache) Close() {
	c.subMu.Lock()
	sub := c.sub
	c.sub = nil
	c.subMu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func shouldReset(change Change) bool {
	if !change.Current.Authenticated {
		return true
	}
	return change.Previous.Authenticated && change.Previous.UserID != change.Current.UserID
}

func (c *SessionCache) editingListenersLocked() []editingEntry {
	return append([]editingEntry(nil), c.listeners...)
}

func (c *SessionCache) notifyEditing(change EditingChange, listeners []editingEntry) {
	for _, entry := range listeners {
		entry.fn(change)
	}
}
