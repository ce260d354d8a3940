package models

// Country is a canonical country label. Slug is the uniqueness key.
type Country struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Genre is a canonical genre label. Slug is the uniqueness key.
type Genre struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}
