// Package cluster derives the aggregate look of a marker cluster from its
// members and groups markers into clusters for a given zoom level.
package cluster

import "techloc/map-core/internal/geo"

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

const (
	smallMax  = 10
	mediumMax = 100
)

// SizeFor buckets a member count: up to 10 is small, up to 100 medium,
// anything above large.
func SizeFor(count int) Size {
	switch {
	case count > mediumMax:
		return SizeLarge
	case count > smallMax:
		return SizeMedium
	default:
		return SizeSmall
	}
}

// IconPixels is the square icon edge used for each size class.
func (s Size) IconPixels() int {
	switch s {
	case SizeLarge:
		return 40
	case SizeMedium:
		return 36
	default:
		return 32
	}
}

type Member struct {
	ID       string     `json:"id"`
	Position geo.Point  `json:"position"`
	Health   geo.Health `json:"-"`
	Stopped  bool       `json:"stopped"`
}

type Rollup struct {
	Count         int    `json:"count"`
	Size          Size   `json:"size"`
	Color         string `json:"color"`
	HasAlertBadge bool   `json:"has_alert_badge"`
}

// Aggregate computes a cluster's rollup. Precedence: any critical member
// makes it red, else any warning member amber, else green when every member
// is healthy. Mixed or unknown members fall back to amber.
func Aggregate(members []Member) Rollup {
	var hasRed, hasAmber, hasStopped bool
	allGreen := true

	for _, m := range members {
		if m.Stopped {
			hasStopped = true
		}
		switch m.Health {
		case geo.HealthCritical:
			hasRed = true
			allGreen = false
		case geo.HealthWarning:
			hasAmber = true
			allGreen = false
		case geo.HealthHealthy:
		default:
			allGreen = false
		}
	}

	color := geo.ColorAmber
	switch {
	case hasRed:
		color = geo.ColorRed
	case hasAmber:
		color = geo.ColorAmber
	case allGreen && len(members) > 0:
		color = geo.ColorGreen
	}

	return Rollup{
		Count:         len(members),
		Size:          SizeFor(len(members)),
		Color:         color,
		HasAlertBadge: hasStopped,
	}
}
