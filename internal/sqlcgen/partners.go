package sqlcgen

import "context"

const listPartnersByCategory = `-- name: ListPartnersByCategory :many
SELECT id,
       category,
       company,
       contact_name,
       phone,
       email,
       address,
       city,
       state,
       zip,
       website,
       availability,
       notes,
       lat,
       lng,
       authorized,
       verified,
       sort_order,
       updated_at
FROM partners
WHERE category = $1
ORDER BY sort_order ASC, id ASC
`

func (q *Queries) ListPartnersByCategory(ctx context.Context, category string) ([]Partner, error) {
	rows, err := q.db.Query(ctx, listPartnersByCategory, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Partner
	for rows.Next() {
		var i Partner
		if err := rows.Scan(
			&i.ID,
			&i.Category,
			&i.Company,
			&i.ContactName,
			&i.Phone,
			&i.Email,
			&i.Address,
			&i.City,
			&i.State,
			&i.Zip,
			&i.Website,
			&i.Availability,
			&i.Notes,
			&i.Lat,
			&i.Lng,
			&i.Authorized,
			&i.Verified,
			&i.SortOrder,
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

const listPartnerCategories = `-- name: ListPartnerCategories :many
SELECT DISTINCT category
FROM partners
ORDER BY category ASC
`

func (q *Queries) ListPartnerCategories(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listPartnerCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertPartner = `-- name: UpsertPartner :exec
INSERT INTO partners (
  id, category, company, contact_name, phone, email, address, city, state, zip,
  website, availability, notes, lat, lng, authorized, verified, sort_order, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now())
ON CONFLICT (id) DO UPDATE
SET category = EXCLUDED.category,
    company = EXCLUDED.company,
    contact_name = EXCLUDED.contact_name,
    phone = EXCLUDED.phone,
    email = EXCLUDED.email,
    address = EXCLUDED.address,
    city = EXCLUDED.city,
    state = EXCLUDED.state,
    zip = EXCLUDED.zip,
    website = EXCLUDED.website,
    availability = EXCLUDED.availability,
    notes = EXCLUDED.notes,
    lat = EXCLUDED.lat,
    lng = EXCLUDED.lng,
    authorized = EXCLUDED.authorized,
    verified = EXCLUDED.verified,
    sort_order = EXCLUDED.sort_order,
    updated_at = now()
`

type UpsertPartnerParams struct {
	ID           string
	Category     string
	Company      *string
	ContactName  *string
	Phone        *string
	Email        *string
	Address      *string
	City         *string
	State        *string
	Zip          *string
	Website      *string
	Availability *string
	Notes        *string
	Lat          *float64
	Lng          *float64
	Authorized   bool
	Verified     bool
	SortOrder    int32
}

func (q *Queries) UpsertPartner(ctx context.Context, arg UpsertPartnerParams) error {
	_, err := q.db.Exec(ctx, upsertPartner,
		arg.ID,
		arg.Category,
		arg.Company,
		arg.ContactName,
		arg.Phone,
		arg.Email,
		arg.Address,
		arg.City,
		arg.State,
		arg.Zip,
		arg.Website,
		arg.Availability,
		arg.Notes,
		arg.Lat,
		arg.Lng,
		arg.Authorized,
		arg.Verified,
		arg.SortOrder,
	)
	return err
}
