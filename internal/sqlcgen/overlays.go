package sqlcgen

import "context"

const listHotspots = `-- name: ListHotspots :many
SELECT id, lat, lng, radius_miles, city, state, zip, updated_at
FROM hotspots
ORDER BY id ASC
`

func (q *Queries) ListHotspots(ctx context.Context) ([]Hotspot, error) {
	rows, err := q.db.Query(ctx, listHotspots)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Hotspot
	for rows.Next() {
		var i Hotspot
		if err := rows.Scan(
			&i.ID,
			&i.Lat,
			&i.Lng,
			&i.RadiusMiles,
			&i.City,
			&i.State,
			&i.Zip,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRemovalSites = `-- name: ListRemovalSites :many
SELECT id, lat, lng, company, assoc_unit, note, updated_at
FROM removal_sites
ORDER BY id ASC
`

func (q *Queries) ListRemovalSites(ctx context.Context) ([]RemovalSite, error) {
	rows, err := q.db.Query(ctx, listRemovalSites)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RemovalSite
	for rows.Next() {
		var i RemovalSite
		if err := rows.Scan(
			&i.ID,
			&i.Lat,
			&i.Lng,
			&i.Company,
			&i.AssocUnit,
			&i.Note,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
