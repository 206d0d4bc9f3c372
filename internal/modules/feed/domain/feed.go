package domain

import "time"

// Source describes one registered news feed
type Source struct {
	Name string `json:"name" koanf:"name"`
	URL  string `json:"url" koanf:"url"`
}

// Item represents a single normalized news entry
type Item struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary"`
}

// HasPublishedAt reports whether the item carries a parsable publish time
func (i Item) HasPublishedAt() bool {
	return !i.PublishedAt.IsZero()
}
