package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/sets"

	"techloc/map-core/internal/feed"
	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/sqlcgen"
)

// VehicleStore is the vehicle table as seen by the recorder.
type VehicleStore interface {
	ListVehicles(ctx context.Context) ([]sqlcgen.Vehicle, error)
	UpsertVehicle(ctx context.Context, arg sqlcgen.UpsertVehicleParams) error
	DeleteVehicle(ctx context.Context, id string) (int64, error)
}

// TxFunc runs fn inside one transaction. *db.Pool's InTx fits once adapted
// with StoreTx.
type TxFunc func(ctx context.Context, fn func(VehicleStore) error) error

// StoreTx adapts a transaction runner over *sqlcgen.Queries.
func StoreTx(inTx func(ctx context.Context, fn func(q *sqlcgen.Queries) error) error) TxFunc {
	return func(ctx context.Context, fn func(VehicleStore) error) error {
		return inTx(ctx, func(q *sqlcgen.Queries) error { return fn(q) })
	}
}

// VehicleLookup returns the merged record the engine holds for id.
type VehicleLookup func(id string) (fleet.Vehicle, bool)

// Recorder is a feed.Sink that forwards telemetry and then mirrors the
// resulting vehicle records into Postgres, so a restart can start from the
// last known fleet. Storage failures are logged and never block the feed.
type Recorder struct {
	log    zerolog.Logger
	next   feed.Sink
	store  VehicleStore
	inTx   TxFunc
	lookup VehicleLookup
}

func NewRecorder(log zerolog.Logger, next feed.Sink, store VehicleStore, inTx TxFunc, lookup VehicleLookup) *Recorder {
	return &Recorder{
		log:    log.With().Str("component", "vehicle_recorder").Logger(),
		next:   next,
		store:  store,
		inTx:   inTx,
		lookup: lookup,
	}
}

func (r *Recorder) Snapshot(ctx context.Context, vehicles []fleet.Vehicle) error {
	if err := r.next.Snapshot(ctx, vehicles); err != nil {
		return err
	}
	write := func(s VehicleStore) error { return replaceVehicles(ctx, s, vehicles) }
	var err error
	if r.inTx != nil {
		err = r.inTx(ctx, write)
	} else {
		err = write(r.store)
	}
	if err != nil {
		r.log.Warn().Err(err).Int("vehicles", len(vehicles)).Msg("vehicle snapshot not persisted")
	}
	return nil
}

func (r *Recorder) Delta(ctx context.Context, d fleet.VehicleDelta) error {
	if err := r.next.Delta(ctx, d); err != nil {
		return err
	}
	if d.ID == "" {
		return nil
	}

	var err error
	switch d.Op {
	case fleet.OpDeleted:
		_, err = r.store.DeleteVehicle(ctx, d.ID)
	case fleet.OpCreated, fleet.OpUpdated:
		v, ok := r.lookup(d.ID)
		if !ok {
			return nil
		}
		err = r.store.UpsertVehicle(ctx, VehicleParams(v))
	default:
		return nil
	}
	if err != nil {
		r.log.Warn().Err(err).Str("vehicle_id", d.ID).Str("op", string(d.Op)).Msg("vehicle delta not persisted")
	}
	return nil
}

// replaceVehicles makes the table hold exactly the snapshot.
func replaceVehicles(ctx context.Context, s VehicleStore, vehicles []fleet.Vehicle) error {
	existing, err := s.ListVehicles(ctx)
	if err != nil {
		return fmt.Errorf("list vehicles: %w", err)
	}
	keep := sets.NewString()
	for _, v := range vehicles {
		if v.ID == "" {
			continue
		}
		keep.Insert(v.ID)
		if err := s.UpsertVehicle(ctx, VehicleParams(v)); err != nil {
			return fmt.Errorf("upsert vehicle %s: %w", v.ID, err)
		}
	}
	stored := sets.NewString()
	for _, row := range existing {
		stored.Insert(row.ID)
	}
	for _, id := range stored.Difference(keep).List() {
		if _, err := s.DeleteVehicle(ctx, id); err != nil {
			return fmt.Errorf("delete vehicle %s: %w", id, err)
		}
	}
	return nil
}

func VehicleParams(v fleet.Vehicle) sqlcgen.UpsertVehicleParams {
	p := sqlcgen.UpsertVehicleParams{ID: v.ID, Status: string(v.Status)}
	if p.Status == "" {
		p.Status = string(fleet.StatusStopped)
	}
	if v.Label != "" {
		label := v.Label
		p.Label = &label
	}
	if v.Position != nil {
		lat, lng := v.Position.Lat, v.Position.Lng
		p.Lat, p.Lng = &lat, &lng
	}
	if !v.UpdatedAt.IsZero() {
		ts := v.UpdatedAt.UTC().Truncate(time.Microsecond)
		p.UpdatedAt = &ts
	}
	return p
}
