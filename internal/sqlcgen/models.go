package sqlcgen

import "time"

type Partner struct {
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
	UpdatedAt    time.Time
}

type Vehicle struct {
	ID        string
	Label     *string
	Lat       *float64
	Lng       *float64
	Status    string
	UpdatedAt time.Time
}

type LayoutPreference struct {
	Profile    string
	LeftWidth  int32
	RightWidth int32
	UpdatedAt  time.Time
}

type Hotspot struct {
	ID          string
	Lat         *float64
	Lng         *float64
	RadiusMiles float64
	City        *string
	State       *string
	Zip         *string
	UpdatedAt   time.Time
}

type RemovalSite struct {
	ID        string
	Lat       *float64
	Lng       *float64
	Company   *string
	AssocUnit *string
	Note      *string
	UpdatedAt time.Time
}
