package domain

import "time"

// RawEntry is an unnormalized entry produced by a fetcher.
type RawEntry struct {
	Title           string
	Link            string
	Summary         string
	Content         string
	Author          string
	Tags            []string
	PublishedParsed *time.Time
	Published       string
	UpdatedParsed   *time.Time
	Extra           map[string]any
}
