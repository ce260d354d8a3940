package models

// Station is a single radio stream endpoint. The stream URL is its identity.
type Station struct {
	ID          int64   `json:"id,omitempty"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	LogoURL     *string `json:"logo_url,omitempty"`
	LogoHint    *string `json:"logo_hint,omitempty"`
	CountryID   *int64  `json:"country_id,omitempty"`
	CountryName *string `json:"country,omitempty"` // populated by read queries (joined from countries)
	City        *string `json:"city,omitempty"`
	Status      Status  `json:"status"`
}

// HasLogo reports whether a logo URL is already stored for the station.
func (s *Station) HasLogo() bool {
	return s.LogoURL != nil && *s.LogoURL != ""
}

// CatalogStats holds row counts for the catalog tables.
type CatalogStats struct {
	Stations     int64 `json:"stations"`
	Countries    int64 `json:"countries"`
	Genres       int64 `json:"genres"`
	Associations int64 `json:"associations"`
	Sources      int64 `json:"sources"`
}
