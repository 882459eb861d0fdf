// Package input maps raw key and mouse-button events to registered listeners.
//
// Pressed and Released listeners fire synchronously from the window callback.
// Held listeners enter a held set on press and are dispatched once per frame
// from the render loop until the matching release.
package input

import (
	"sort"
)

// Code identifies a key or a mouse button. Key codes are the window system's
// key symbols; mouse buttons live in their own range, see MouseButton.
type Code int64

const mouseBase Code = 1 << 40

// Key wraps a window-system key symbol.
func Key(sym int32) Code { return Code(sym) }

// MouseButton wraps a 1-based mouse button index.
func MouseButton(button uint8) Code { return mouseBase + Code(button) }

type Trigger int

const (
	Pressed Trigger = iota
	Released
	Held
)

func (t Trigger) String() string {
	switch t {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	case Held:
		return "held"
	}
	return "unknown"
}

type Action int

const (
	ActionPress Action = iota
	ActionRelease
	ActionRepeat
)

// Callback receives the frame delta in seconds for Held listeners and zero for
// edge-triggered ones.
type Callback func(dt float64)

// Token is returned by Register and used to remove the listener again.
type Token uint64

type listener struct {
	token    Token
	code     Code
	trigger  Trigger
	callback Callback
}

type Manager struct {
	next      Token
	listeners map[Token]*listener
	held      map[Token]*listener
}

func NewManager() *Manager {
	return &Manager{
		listeners: make(map[Token]*listener),
		held:      make(map[Token]*listener),
	}
}

func (m *Manager) Register(code Code, trigger Trigger, callback Callback) Token {
	m.next++
	m.listeners[m.next] = &listener{
		token:    m.next,
		code:     code,
		trigger:  trigger,
		callback: callback,
	}
	return m.next
}

// Remove drops a listener. It reports false for tokens that are not registered.
func (m *Manager) Remove(token Token) bool {
	if _, ok := m.listeners[token]; !ok {
		return false
	}
	delete(m.listeners, token)
	delete(m.held, token)
	return true
}

// HandleEvent dispatches one raw event. It reports whether any listener consumed
// it; codes without listeners are ignored.
func (m *Manager) HandleEvent(code Code, action Action) bool {
	if action == ActionRepeat {
		return false
	}

	handled := false
	for _, l := range m.ordered(m.listeners) {
		if l.code != code {
			continue
		}

		switch l.trigger {
		case Pressed:
			if action == ActionPress {
				l.callback(0)
				handled = true
			}
		case Released:
			if action == ActionRelease {
				l.callback(0)
				handled = true
			}
		case Held:
			_, isHeld := m.held[l.token]
			if action == ActionPress && !isHeld {
				m.held[l.token] = l
				handled = true
			} else if action == ActionRelease && isHeld {
				delete(m.held, l.token)
				handled = true
			}
		}
	}

	return handled
}

// DispatchHeld invokes every held listener with the elapsed frame time.
func (m *Manager) DispatchHeld(dt float64) {
	for _, l := range m.ordered(m.held) {
		l.callback(dt)
	}
}

func (m *Manager) IsHeld(token Token) bool {
	_, ok := m.held[token]
	return ok
}

// ReleaseAll empties the held set. Releases that happen while the window is
// unfocused never arrive, so this runs on focus loss.
func (m *Manager) ReleaseAll() {
	for token := range m.held {
		delete(m.held, token)
	}
}

// ordered keeps dispatch in registration order.
func (m *Manager) ordered(set map[Token]*listener) []*listener {
	out := make([]*listener, 0, len(set))
	for _, l := range set {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].token < out[j].token })
	return out
}
