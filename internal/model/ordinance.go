package model

// OrdinanceRecord is one row of a scraped ordinance CSV. Numeric columns are
// pointers because the scraper leaves them blank for qualitative features.
type OrdinanceRecord struct {
	County           string   `json:"county"`
	State            string   `json:"state"`
	Subdivision      string   `json:"subdivision,omitempty"`
	JurisdictionType string   `json:"jurisdiction_type,omitempty"`
	FIPS             int64    `json:"fips"`
	Feature          string   `json:"feature"`
	Value            *float64 `json:"value,omitempty"`
	Units            string   `json:"units,omitempty"`
	Offset           *float64 `json:"offset,omitempty"`
	MinDist          *float64 `json:"min_dist,omitempty"`
	MaxDist          *float64 `json:"max_dist,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	OrdYear          *int     `json:"ord_year,omitempty"`
	Section          string   `json:"section,omitempty"`
	Source           string   `json:"source,omitempty"`
}
