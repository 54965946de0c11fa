package models

// County is a top-level administrative region.
type County struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// SubCounty belongs to a county.
type SubCounty struct {
	ID       string `db:"id" json:"id"`
	CountyID string `db:"county_id" json:"county_id"`
	Name     string `db:"name" json:"name"`
}

// Ward belongs to a sub-county.
type Ward struct {
	ID          string `db:"id" json:"id"`
	SubCountyID string `db:"sub_county_id" json:"sub_county_id"`
	Name        string `db:"name" json:"name"`
}

// Institution is a learning institution students apply from.
type Institution struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Type     string `db:"type" json:"type"`
	CountyID string `db:"county_id" json:"county_id"`
}
