// Package sidebar tracks which dashboard panels are expanded. Left panels
// are mutually exclusive and each one maps to a partner category; the right
// panel toggles independently.
package sidebar

import "techloc/map-core/internal/category"

type State struct {
	// LeftActive is empty when no left panel is expanded.
	LeftActive    category.Key `json:"left_active,omitempty"`
	RightExpanded bool         `json:"right_expanded"`
}

// Transition reports what a left-group change did. It is built after the
// state has been updated, so observers see the post-collapse state.
type Transition struct {
	Changed     bool           `json:"changed"`
	Activated   []category.Key `json:"activated,omitempty"`
	Deactivated []category.Key `json:"deactivated,omitempty"`
}

type Machine struct {
	left  []category.Key
	known map[category.Key]struct{}
	state State
}

// New builds a machine for the given left-group keys. An initial left key
// that is not part of the group is ignored.
func New(left []category.Key, initial State) *Machine {
	m := &Machine{known: make(map[category.Key]struct{}, len(left))}
	for _, k := range left {
		if _, dup := m.known[k]; dup {
			continue
		}
		m.known[k] = struct{}{}
		m.left = append(m.left, k)
	}
	if !m.Configured(initial.LeftActive) {
		initial.LeftActive = ""
	}
	m.state = initial
	return m
}

func (m *Machine) State() State {
	return m.state
}

// LeftKeys returns the configured left-group keys in order.
func (m *Machine) LeftKeys() []category.Key {
	return append([]category.Key(nil), m.left...)
}

func (m *Machine) Configured(k category.Key) bool {
	_, ok := m.known[k]
	return ok
}

// Active returns the expanded left key, if any.
func (m *Machine) Active() (category.Key, bool) {
	return m.state.LeftActive, m.state.LeftActive != ""
}

// Expand activates key, collapsing whichever sibling was active.
// Unconfigured keys are ignored.
func (m *Machine) Expand(key category.Key) Transition {
	if !m.Configured(key) || m.state.LeftActive == key {
		return Transition{}
	}
	t := Transition{Changed: true, Activated: []category.Key{key}}
	if prev := m.state.LeftActive; prev != "" {
		m.state.LeftActive = ""
		t.Deactivated = []category.Key{prev}
	}
	m.state.LeftActive = key
	return t
}

// Collapse deactivates key if it is the active panel.
func (m *Machine) Collapse(key category.Key) Transition {
	if !m.Configured(key) || m.state.LeftActive != key {
		return Transition{}
	}
	m.state.LeftActive = ""
	return Transition{Changed: true, Deactivated: []category.Key{key}}
}

// Toggle expands or collapses key.
func (m *Machine) Toggle(key category.Key, expand bool) Transition {
	if expand {
		return m.Expand(key)
	}
	return m.Collapse(key)
}

// SetRight sets the right panel and reports whether it changed.
func (m *Machine) SetRight(expanded bool) bool {
	if m.state.RightExpanded == expanded {
		return false
	}
	m.state.RightExpanded = expanded
	return true
}
