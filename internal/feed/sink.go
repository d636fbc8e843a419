// Package feed brings vehicle telemetry into the engine, either by polling a
// GTFS-realtime endpoint and diffing successive snapshots, or by consuming
// delta messages from Kafka.
package feed

import (
	"context"
	"errors"

	"techloc/map-core/internal/engine"
	"techloc/map-core/internal/fleet"
)

// Sink receives vehicle telemetry. *EngineSink forwards it to the engine.
type Sink interface {
	Snapshot(ctx context.Context, vehicles []fleet.Vehicle) error
	Delta(ctx context.Context, d fleet.VehicleDelta) error
}

// Source fetches a full vehicle snapshot.
type Source interface {
	Fetch(ctx context.Context) ([]fleet.Vehicle, error)
}

type EngineSink struct {
	Engine *engine.Engine
}

func (s *EngineSink) Snapshot(ctx context.Context, vehicles []fleet.Vehicle) error {
	_, err := s.Engine.Dispatch(ctx, engine.VehicleSnapshot{Vehicles: vehicles})
	return err
}

// Delta forwards d. Deltas the engine cannot place are dropped, not
// reported, since they are data-quality problems rather than feed failures.
func (s *EngineSink) Delta(ctx context.Context, d fleet.VehicleDelta) error {
	_, err := s.Engine.Dispatch(ctx, engine.VehicleDelta{Delta: d})
	if errors.Is(err, engine.ErrUnknownVehicle) || errors.Is(err, engine.ErrInvalidPoint) {
		return nil
	}
	return err
}
