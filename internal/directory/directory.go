// Package directory loads partner lists, map overlays and the initial
// vehicle snapshot from Postgres and hands them to the engine. Partner lists
// and overlays are replaced wholesale on every refresh.
package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"techloc/map-core/internal/category"
	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
	"techloc/map-core/internal/metrics"
	"techloc/map-core/internal/sqlcgen"
	"techloc/map-core/internal/worker"
)

// Queries is the minimal DB interface the refresher needs.
// *sqlcgen.Queries satisfies it.
type Queries interface {
	ListPartnerCategories(ctx context.Context) ([]string, error)
	ListPartnersByCategory(ctx context.Context, category string) ([]sqlcgen.Partner, error)
	ListVehicles(ctx context.Context) ([]sqlcgen.Vehicle, error)
	ListHotspots(ctx context.Context) ([]sqlcgen.Hotspot, error)
	ListRemovalSites(ctx context.Context) ([]sqlcgen.RemovalSite, error)
}

// Dispatcher is satisfied by *engine.Engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev engine.Event) (engine.Change, error)
}

type Options struct {
	Interval time.Duration
	// Keys lists the partner categories to load.
	Keys []category.Key
}

type Refresher struct {
	log      zerolog.Logger
	q        Queries
	d        Dispatcher
	keys     []category.Key
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(log zerolog.Logger, q Queries, d Dispatcher, opts Options, m *metrics.Metrics) *Refresher {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		log:      log.With().Str("component", "directory").Logger(),
		q:        q,
		d:        d,
		keys:     opts.Keys,
		interval: interval,
		metrics:  m,
	}
}

// Run refreshes immediately and then every interval.
func (r *Refresher) Run(ctx context.Context) {
	if r == nil || r.q == nil || r.d == nil {
		return
	}
	worker.Run(ctx, r.log, worker.Options{Interval: r.interval, Immediate: true}, r.Refresh)
}

// Refresh reloads partners and overlays. Both always run; the partner error
// wins when both fail.
func (r *Refresher) Refresh(ctx context.Context) error {
	perr := r.RefreshPartners(ctx)
	oerr := r.RefreshOverlays(ctx)
	if perr != nil {
		return perr
	}
	return oerr
}

// RefreshPartners reloads every configured category. A failing category does
// not stop the others; the first error is returned.
func (r *Refresher) RefreshPartners(ctx context.Context) error {
	start := time.Now()
	r.warnUnconfigured(ctx)

	var firstErr error
	total := 0
	for _, key := range r.keys {
		rows, err := r.q.ListPartnersByCategory(ctx, string(key))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("list partners %s: %w", key, err)
			}
			continue
		}
		partners := make([]fleet.Partner, 0, len(rows))
		for _, row := range rows {
			partners = append(partners, PartnerFromRow(row))
		}
		if _, err := r.d.Dispatch(ctx, engine.PartnersLoaded{Key: key, Partners: partners}); err != nil {
			r.log.Warn().Err(err).Str("category", string(key)).Msg("partners not applied")
			continue
		}
		total += len(partners)
	}
	r.metrics.ObserveFeedPoll("directory", firstErr, time.Since(start))
	r.log.Debug().Int("partners", total).Msg("partner directory refreshed")
	return firstErr
}

// RefreshOverlays reloads the hotspot and removal site overlays.
func (r *Refresher) RefreshOverlays(ctx context.Context) error {
	hrows, err := r.q.ListHotspots(ctx)
	if err != nil {
		return fmt.Errorf("list hotspots: %w", err)
	}
	hotspots := make([]fleet.Hotspot, 0, len(hrows))
	for _, row := range hrows {
		hotspots = append(hotspots, HotspotFromRow(row))
	}

	srows, err := r.q.ListRemovalSites(ctx)
	if err != nil {
		return fmt.Errorf("list removal sites: %w", err)
	}
	sites := make([]fleet.RemovalSite, 0, len(srows))
	for _, row := range srows {
		sites = append(sites, RemovalSiteFromRow(row))
	}

	if _, err := r.d.Dispatch(ctx, engine.HotspotsLoaded{Hotspots: hotspots}); err != nil {
		return fmt.Errorf("apply hotspots: %w", err)
	}
	if _, err := r.d.Dispatch(ctx, engine.RemovalSitesLoaded{Sites: sites}); err != nil {
		return fmt.Errorf("apply removal sites: %w", err)
	}
	r.log.Debug().Int("hotspots", len(hotspots)).Int("removal_sites", len(sites)).Msg("overlays refreshed")
	return nil
}

// warnUnconfigured logs stored categories that no layer will show.
func (r *Refresher) warnUnconfigured(ctx context.Context) {
	stored, err := r.q.ListPartnerCategories(ctx)
	if err != nil {
		r.log.Debug().Err(err).Msg("list partner categories")
		return
	}
	known := make(map[category.Key]struct{}, len(r.keys))
	for _, k := range r.keys {
		known[k] = struct{}{}
	}
	for _, raw := range stored {
		if _, ok := known[category.Key(raw)]; !ok {
			r.log.Warn().Str("category", raw).Msg("partners stored under an unconfigured category are not shown")
		}
	}
}

// LoadVehicles sends the stored vehicle table as a full snapshot.
func (r *Refresher) LoadVehicles(ctx context.Context) error {
	rows, err := r.q.ListVehicles(ctx)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}
	vehicles := make([]fleet.Vehicle, 0, len(rows))
	for _, row := range rows {
		vehicles = append(vehicles, VehicleFromRow(row))
	}
	if _, err := r.d.Dispatch(ctx, engine.VehicleSnapshot{Vehicles: vehicles}); err != nil {
		return fmt.Errorf("apply vehicle snapshot: %w", err)
	}
	r.log.Info().Int("vehicles", len(vehicles)).Msg("vehicle snapshot loaded")
	return nil
}

func PartnerFromRow(row sqlcgen.Partner) fleet.Partner {
	return fleet.Partner{
		ID:         row.ID,
		Kind:       category.Key(row.Category),
		Position:   point(row.Lat, row.Lng),
		Authorized: row.Authorized,
		Verified:   row.Verified,
		Contact: fleet.Contact{
			Company:      str(row.Company),
			Name:         str(row.ContactName),
			Phone:        str(row.Phone),
			Email:        str(row.Email),
			Address:      str(row.Address),
			City:         str(row.City),
			State:        str(row.State),
			Zip:          str(row.Zip),
			Website:      str(row.Website),
			Availability: str(row.Availability),
			Notes:        str(row.Notes),
		},
	}
}

func VehicleFromRow(row sqlcgen.Vehicle) fleet.Vehicle {
	return fleet.Vehicle{
		ID:        row.ID,
		Label:     str(row.Label),
		Position:  point(row.Lat, row.Lng),
		Status:    fleet.ParseVehicleStatus(row.Status),
		UpdatedAt: row.UpdatedAt,
	}
}

func HotspotFromRow(row sqlcgen.Hotspot) fleet.Hotspot {
	return fleet.Hotspot{
		ID:          row.ID,
		Position:    point(row.Lat, row.Lng),
		RadiusMiles: row.RadiusMiles,
		City:        str(row.City),
		State:       str(row.State),
		Zip:         str(row.Zip),
	}
}

func RemovalSiteFromRow(row sqlcgen.RemovalSite) fleet.RemovalSite {
	return fleet.RemovalSite{
		ID:        row.ID,
		Position:  point(row.Lat, row.Lng),
		Company:   str(row.Company),
		AssocUnit: str(row.AssocUnit),
		Note:      str(row.Note),
	}
}

// point is nil unless both coordinates are present.
func point(lat, lng *float64) *geo.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &geo.Point{Lat: *lat, Lng: *lng}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
