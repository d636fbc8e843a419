package sqlcgen

import (
	"context"
	"time"
)

const listVehicles = `-- name: ListVehicles :many
SELECT id,
       label,
       lat,
       lng,
       status,
       updated_at
FROM vehicles
ORDER BY id ASC
`

func (q *Queries) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	rows, err := q.db.Query(ctx, listVehicles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Vehicle
	for rows.Next() {
		var i Vehicle
		if err := rows.Scan(&i.ID, &i.Label, &i.Lat, &i.Lng, &i.Status, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertVehicle = `-- name: UpsertVehicle :exec
INSERT INTO vehicles (id, label, lat, lng, status, updated_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, now()))
ON CONFLICT (id) DO UPDATE
SET label = EXCLUDED.label,
    lat = EXCLUDED.lat,
    lng = EXCLUDED.lng,
    status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at
`

type UpsertVehicleParams struct {
	ID        string
	Label     *string
	Lat       *float64
	Lng       *float64
	Status    string
	UpdatedAt *time.Time
}

func (q *Queries) UpsertVehicle(ctx context.Context, arg UpsertVehicleParams) error {
	_, err := q.db.Exec(ctx, upsertVehicle, arg.ID, arg.Label, arg.Lat, arg.Lng, arg.Status, arg.UpdatedAt)
	return err
}

const deleteVehicle = `-- name: DeleteVehicle :execrows
DELETE FROM vehicles
WHERE id = $1
`

func (q *Queries) DeleteVehicle(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteVehicle, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
