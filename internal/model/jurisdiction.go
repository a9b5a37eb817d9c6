package model

// Jurisdiction is one scraped jurisdiction from the run manifest, with the
// source documents the scraper archived for it.
type Jurisdiction struct {
	FullName         string     `json:"full_name"`
	County           string     `json:"county"`
	State            string     `json:"state"`
	Subdivision      *string    `json:"subdivision,omitempty"`
	JurisdictionType *string    `json:"jurisdiction_type,omitempty"`
	FIPS             int64      `json:"fips"`
	Found            bool       `json:"found"`
	TotalTime        float64    `json:"total_time"`
	TotalTimeString  string     `json:"total_time_string,omitempty"`
	Documents        []Document `json:"documents,omitempty"`
}

// Document is an archived source document referenced by a jurisdiction.
// Checksum carries the scraper's declared "sha256:<hex>" digest; AccessTime
// is kept opaque as received.
type Document struct {
	Source     string `json:"source"`
	OrdYear    int    `json:"ord_year"`
	Filename   string `json:"ord_filename"`
	NumPages   int    `json:"num_pages"`
	Checksum   string `json:"checksum"`
	AccessTime string `json:"access_time,omitempty"`
}
