// Package matcher picks the partner drawn from the current origin.
package matcher

import (
	"strings"

	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
)

type Match struct {
	Partner       fleet.Partner `json:"partner"`
	DistanceMiles float64       `json:"distance_miles"`
	Pinned        bool          `json:"pinned"`
}

// FindNearest returns the candidate closest to origin. Candidates without
// valid coordinates are skipped. On equal distance the earlier candidate
// wins, so callers control priority through input order.
func FindNearest(origin geo.Point, candidates []fleet.Partner) (fleet.Partner, float64, bool) {
	bestIdx := -1
	bestDist := 0.0
	for i := range candidates {
		p, ok := candidates[i].Location()
		if !ok || !geo.Valid(p) {
			continue
		}
		d := geo.Distance(origin, p)
		if bestIdx < 0 || d < bestDist {
			bestIdx = i
			bestDist = d
		}
	}
	if bestIdx < 0 {
		return fleet.Partner{}, 0, false
	}
	return candidates[bestIdx], bestDist, true
}

// Select resolves the partner for one category. A pinned partner always wins
// over the nearest candidate and is used as given.
func Select(origin geo.Point, candidates []fleet.Partner, pinned *fleet.Partner) (Match, bool) {
	if pinned != nil {
		m := Match{Partner: *pinned, Pinned: true}
		if p, ok := pinned.Location(); ok && geo.Valid(p) {
			m.DistanceMiles = geo.Distance(origin, p)
		}
		return m, true
	}
	p, d, ok := FindNearest(origin, candidates)
	if !ok {
		return Match{}, false
	}
	return Match{Partner: p, DistanceMiles: d}, true
}

// Filter is the caller-side narrowing applied before matching.
type Filter struct {
	Query          string `json:"query,omitempty"`
	AuthorizedOnly bool   `json:"authorized_only,omitempty"`
}

func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && !f.AuthorizedOnly
}

// Apply keeps input order. The query matches case-insensitively against the
// partner's name and address fields.
func (f Filter) Apply(in []fleet.Partner) []fleet.Partner {
	if f.IsZero() {
		return in
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]fleet.Partner, 0, len(in))
	for _, p := range in {
		if f.AuthorizedOnly && !p.Authorized {
			continue
		}
		if q != "" && !matchesQuery(p, q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesQuery(p fleet.Partner, q string) bool {
	fields := []string{
		p.Contact.Company,
		p.Contact.Name,
		p.Contact.City,
		p.Contact.State,
		p.Contact.Zip,
		p.Contact.Address,
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
