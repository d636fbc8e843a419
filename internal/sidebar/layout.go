package sidebar

import "fmt"

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func ParseSide(raw string) (Side, error) {
	switch Side(raw) {
	case SideLeft, SideRight:
		return Side(raw), nil
	default:
		return "", fmt.Errorf("unknown panel side %q", raw)
	}
}

const (
	MinWidth     = 260
	MaxWidth     = 720
	DefaultWidth = 320
)

// ClampWidth keeps a panel width within the resizable range.
func ClampWidth(px int) int {
	if px < MinWidth {
		return MinWidth
	}
	if px > MaxWidth {
		return MaxWidth
	}
	return px
}

// Layout holds the resizable panel widths that are persisted as
// preferences.
type Layout struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

func DefaultLayout() Layout {
	return Layout{Left: DefaultWidth, Right: DefaultWidth}
}

// Normalize clamps both widths, treating zero as the default width.
func (l Layout) Normalize() Layout {
	if l.Left == 0 {
		l.Left = DefaultWidth
	}
	if l.Right == 0 {
		l.Right = DefaultWidth
	}
	return Layout{Left: ClampWidth(l.Left), Right: ClampWidth(l.Right)}
}

// WithWidth returns the layout with one side resized and clamped, and
// whether anything changed.
func (l Layout) WithWidth(side Side, px int) (Layout, bool) {
	px = ClampWidth(px)
	out := l
	switch side {
	case SideLeft:
		out.Left = px
	case SideRight:
		out.Right = px
	default:
		return l, false
	}
	return out, out != l
}
