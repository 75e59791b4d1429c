// Package model holds the domain types shared by the biz, data and service layers.
package model

import "time"

// ReleaseEntry is one candidate release inside a search result.
type ReleaseEntry struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist,omitempty"`
	Year        int      `json:"year,omitempty"`
	Format      string   `json:"format,omitempty"`
	Thumb       string   `json:"thumb,omitempty"`
	LowestPrice *float64 `json:"lowest_price,omitempty"`
}

// SearchResult groups the releases found for one search query.
type SearchResult struct {
	Query    string          `json:"query"`
	Releases []*ReleaseEntry `json:"releases"`
}

// OwnershipQuery asks whether Username has ReleaseID in their collection.
type OwnershipQuery struct {
	Username  string
	ReleaseID int64
}

// CollectionRelease is one collection instance of a release. ID is nil when
// Discogs omits it.
type CollectionRelease struct {
	ID         *int64 `json:"id"`
	InstanceID int64  `json:"instance_id"`
	FolderID   int64  `json:"folder_id"`
	Rating     int    `json:"rating"`
	DateAdded  string `json:"date_added,omitempty"`
}

// CollectionReleases is the collection lookup result for one OwnershipQuery.
type CollectionReleases struct {
	Releases []CollectionRelease `json:"releases"`
}

// Contains reports whether any entry carries releaseID. Entries without an id never match.
func (c *CollectionReleases) Contains(releaseID int64) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Releases {
		if r.ID != nil && *r.ID == releaseID {
			return true
		}
	}
	return false
}

// PriceStats is the marketplace summary for a release.
type PriceStats struct {
	ReleaseID   int64     `json:"release_id"`
	LowestPrice *float64  `json:"lowest_price,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	NumForSale  int       `json:"num_for_sale"`
	Blocked     bool      `json:"blocked_from_sale"`
	FetchedAt   time.Time `json:"fetched_at"`
}
