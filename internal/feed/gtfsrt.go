package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/geo"
)

// GTFSRTSource reads vehicle positions from a GTFS-realtime feed.
type GTFSRTSource struct {
	url        string
	httpClient *http.Client
}

func NewGTFSRTSource(url string, timeout time.Duration) *GTFSRTSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GTFSRTSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *GTFSRTSource) Fetch(ctx context.Context) ([]fleet.Vehicle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build gtfs-rt request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch gtfs-rt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtfs-rt http status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gtfs-rt body: %w", err)
	}
	return ParseGTFSRT(body)
}

// ParseGTFSRT decodes a FeedMessage and keeps the entities that carry a
// vehicle id and a position.
func ParseGTFSRT(body []byte) ([]fleet.Vehicle, error) {
	var feed gtfs.FeedMessage
	if err := proto.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode gtfs-rt: %w", err)
	}

	vehicles := make([]fleet.Vehicle, 0, len(feed.GetEntity()))
	for _, ent := range feed.GetEntity() {
		vp := ent.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		id := strings.TrimSpace(vp.GetVehicle().GetId())
		if id == "" {
			id = strings.TrimSpace(ent.GetId())
		}
		if id == "" {
			continue
		}

		pos := vp.GetPosition()
		v := fleet.Vehicle{
			ID:    id,
			Label: vp.GetVehicle().GetLabel(),
			Position: &geo.Point{
				Lat: float64(pos.GetLatitude()),
				Lng: float64(pos.GetLongitude()),
			},
			Status: vehicleStatus(vp),
		}
		if ts := vp.GetTimestamp(); ts > 0 {
			v.UpdatedAt = time.Unix(int64(ts), 0).UTC()
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

// vehicleStatus prefers reported speed and falls back to the stop status.
func vehicleStatus(vp *gtfs.VehiclePosition) fleet.VehicleStatus {
	if pos := vp.GetPosition(); pos != nil && pos.Speed != nil {
		if pos.GetSpeed() > 0 {
			return fleet.StatusMoving
		}
		return fleet.StatusStopped
	}
	if vp.CurrentStatus == nil {
		return fleet.StatusMoving
	}
	if vp.GetCurrentStatus() == gtfs.VehiclePosition_STOPPED_AT {
		return fleet.StatusStopped
	}
	return fleet.StatusMoving
}
