package sqlcgen

import "context"

const getLayoutPreference = `-- name: GetLayoutPreference :one
SELECT profile,
       left_width,
       right_width,
       updated_at
FROM layout_preferences
WHERE profile = $1
`

func (q *Queries) GetLayoutPreference(ctx context.Context, profile string) (LayoutPreference, error) {
	row := q.db.QueryRow(ctx, getLayoutPreference, profile)
	var i LayoutPreference
	err := row.Scan(&i.Profile, &i.LeftWidth, &i.RightWidth, &i.UpdatedAt)
	return i, err
}

const upsertLayoutPreference = `-- name: UpsertLayoutPreference :exec
INSERT INTO layout_preferences (profile, left_width, right_width, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (profile) DO UPDATE
SET left_width = EXCLUDED.left_width,
    right_width = EXCLUDED.right_width,
    updated_at = now()
`

type UpsertLayoutPreferenceParams struct {
	Profile    string
	LeftWidth  int32
	RightWidth int32
}

func (q *Queries) UpsertLayoutPreference(ctx context.Context, arg UpsertLayoutPreferenceParams) error {
	_, err := q.db.Exec(ctx, upsertLayoutPreference, arg.Profile, arg.LeftWidth, arg.RightWidth)
	return err
}
