package models

import "time"

// Source records which playlist tree, playlist URL or index site contributed stations.
type Source struct {
	ID          int64      `json:"id,omitempty"`
	URL         string     `json:"url"`
	Folder      string     `json:"folder,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}
