package sidebar

import (
	"reflect"
	"testing"

	"techloc/map-core/internal/category"
)

func newMachine() *Machine {
	return New([]category.Key{category.Technician, category.Reseller, category.Repair, "custom-ev"}, State{})
}

func TestExpand_CollapsesSibling(t *testing.T) {
	m := newMachine()
	m.SetRight(true)
	m.Expand(category.Technician)

	tr := m.Expand(category.Reseller)
	if !tr.Changed {
		t.Fatalf("expected change")
	}
	if !reflect.DeepEqual(tr.Activated, []category.Key{category.Reseller}) {
		t.Fatalf("unexpected activated %v", tr.Activated)
	}
	if !reflect.DeepEqual(tr.Deactivated, []category.Key{category.Technician}) {
		t.Fatalf("unexpected deactivated %v", tr.Deactivated)
	}
	st := m.State()
	if st.LeftActive != category.Reseller {
		t.Fatalf("expected reseller active, got %q", st.LeftActive)
	}
	if !st.RightExpanded {
		t.Fatalf("expected right panel to be unaffected")
	}
}

func TestExpand_SameKeyIsNoop(t *testing.T) {
	m := newMachine()
	m.Expand(category.Repair)
	if tr := m.Expand(category.Repair); tr.Changed {
		t.Fatalf("expected re-expanding the active panel to be a no-op")
	}
}

func TestExpand_UnconfiguredKeyIsNoop(t *testing.T) {
	m := newMachine()
	m.Expand(category.Technician)
	if tr := m.Expand(category.Vehicle); tr.Changed {
		t.Fatalf("expected unconfigured key to be ignored")
	}
	if got, _ := m.Active(); got != category.Technician {
		t.Fatalf("expected technician to stay active, got %q", got)
	}
}

func TestCollapse(t *testing.T) {
	m := newMachine()
	m.Expand(category.Technician)

	if tr := m.Collapse(category.Reseller); tr.Changed {
		t.Fatalf("expected collapsing an inactive panel to be a no-op")
	}
	tr := m.Collapse(category.Technician)
	if !tr.Changed || len(tr.Deactivated) != 1 {
		t.Fatalf("expected technician to be collapsed, got %+v", tr)
	}
	if _, ok := m.Active(); ok {
		t.Fatalf("expected no active left panel")
	}
}

func TestSetRight_IndependentOfLeft(t *testing.T) {
	m := newMachine()
	m.Expand("custom-ev")
	if !m.SetRight(true) || m.SetRight(true) {
		t.Fatalf("expected right toggle to report change only once")
	}
	if got, _ := m.Active(); got != "custom-ev" {
		t.Fatalf("expected left group untouched, got %q", got)
	}
}

func TestNew_InitialState(t *testing.T) {
	m := New([]category.Key{category.Reseller}, State{LeftActive: category.Reseller, RightExpanded: true})
	if st := m.State(); st.LeftActive != category.Reseller || !st.RightExpanded {
		t.Fatalf("unexpected initial state %+v", st)
	}

	m = New([]category.Key{category.Reseller}, State{LeftActive: category.Repair})
	if _, ok := m.Active(); ok {
		t.Fatalf("expected unconfigured initial key to be dropped")
	}
}

func TestLayout_WithWidthClamps(t *testing.T) {
	l := DefaultLayout()

	got, changed := l.WithWidth(SideLeft, 100)
	if !changed || got.Left != MinWidth {
		t.Fatalf("expected clamp to %d, got %+v", MinWidth, got)
	}
	got, _ = got.WithWidth(SideRight, 5000)
	if got.Right != MaxWidth {
		t.Fatalf("expected clamp to %d, got %+v", MaxWidth, got)
	}
	if _, changed := got.WithWidth(SideRight, 9999); changed {
		t.Fatalf("expected no change when clamped value is unchanged")
	}
	if _, err := ParseSide("top"); err == nil {
		t.Fatalf("expected unknown side to fail")
	}
	if n := (Layout{}).Normalize(); n != DefaultLayout() {
		t.Fatalf("expected zero layout to normalize to defaults, got %+v", n)
	}
}
