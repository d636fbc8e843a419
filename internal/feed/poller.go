package feed

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/metrics"
	"techloc/map-core/internal/worker"
)

type PollerOptions struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	// Name labels the source in logs and metrics.
	Name string
}

// Poller fetches snapshots on an interval. The first successful fetch is
// sent as a full snapshot; later fetches are diffed against the previous
// one and sent as deltas.
type Poller struct {
	log      zerolog.Logger
	src      Source
	sink     Sink
	metrics  *metrics.Metrics
	interval time.Duration
	timeout  time.Duration
	name     string

	primed bool
	last   map[string]fleet.Vehicle
}

func NewPoller(log zerolog.Logger, src Source, sink Sink, opts PollerOptions, m *metrics.Metrics) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	name := opts.Name
	if name == "" {
		name = "gtfsrt"
	}
	return &Poller{
		log:      log.With().Str("feed", name).Logger(),
		src:      src,
		sink:     sink,
		metrics:  m,
		interval: interval,
		timeout:  timeout,
		name:     name,
		last:     make(map[string]fleet.Vehicle),
	}
}

// Run polls until ctx is done, backing off after consecutive failures.
func (p *Poller) Run(ctx context.Context) {
	if p == nil || p.src == nil || p.sink == nil {
		return
	}
	worker.Run(ctx, p.log, worker.Options{Interval: p.interval, Immediate: true}, p.PollOnce)
}

// PollOnce runs a single fetch and delivers its result.
func (p *Poller) PollOnce(ctx context.Context) error {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vehicles, err := p.src.Fetch(cctx)
	p.metrics.ObserveFeedPoll(p.name, err, time.Since(start))
	if err != nil {
		return err
	}

	current := index(vehicles)
	if !p.primed {
		if err := p.sink.Snapshot(ctx, vehicles); err != nil {
			return err
		}
		p.primed = true
		p.last = current
		p.log.Info().Int("vehicles", len(current)).Msg("vehicle feed primed")
		return nil
	}

	deltas := Diff(p.last, current)
	for _, d := range deltas {
		if err := p.sink.Delta(ctx, d); err != nil {
			return err
		}
	}
	p.last = current
	if len(deltas) > 0 {
		p.log.Debug().Int("deltas", len(deltas)).Msg("vehicle feed changed")
	}
	return nil
}

func index(vehicles []fleet.Vehicle) map[string]fleet.Vehicle {
	out := make(map[string]fleet.Vehicle, len(vehicles))
	for _, v := range vehicles {
		if v.ID == "" {
			continue
		}
		out[v.ID] = v
	}
	return out
}

// Diff turns two snapshots into the deltas that lead from prev to next,
// ordered by vehicle id with deletions of vanished vehicles last. Applying
// the result leaves the same markers as applying next as a snapshot.
func Diff(prev, next map[string]fleet.Vehicle) []fleet.VehicleDelta {
	ids := make([]string, 0, len(next))
	for id := range next {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []fleet.VehicleDelta
	for _, id := range ids {
		v := next[id]
		old, ok := prev[id]
		switch {
		case !ok:
			out = append(out, fleet.VehicleDelta{Op: fleet.OpCreated, ID: id, Patch: fleet.PatchFromVehicle(v)})
		case old.Position != nil && v.Position == nil:
			// A patch cannot unset a position, so the record is rebuilt
			// without one.
			out = append(out,
				fleet.VehicleDelta{Op: fleet.OpDeleted, ID: id},
				fleet.VehicleDelta{Op: fleet.OpCreated, ID: id, Patch: fleet.PatchFromVehicle(v)},
			)
		case changed(old, v):
			out = append(out, fleet.VehicleDelta{Op: fleet.OpUpdated, ID: id, Patch: fleet.PatchFromVehicle(v)})
		}
	}

	var gone []string
	for id := range prev {
		if _, ok := next[id]; !ok {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		out = append(out, fleet.VehicleDelta{Op: fleet.OpDeleted, ID: id})
	}
	return out
}

func changed(a, b fleet.Vehicle) bool {
	if a.Label != b.Label || a.Status != b.Status {
		return true
	}
	if (a.Position == nil) != (b.Position == nil) {
		return true
	}
	return a.Position != nil && !a.Position.Equal(*b.Position)
}
