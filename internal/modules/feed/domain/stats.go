package domain

// CollectionStats records how one fetch of one feed performed.
// UpstreamTotal is the entry count the feed offered before the usable-link
// filter and the desired-count cap were applied.
type CollectionStats struct {
	Feed          string `json:"feed"`
	Requested     int    `json:"requested"`
	UpstreamTotal int    `json:"upstream_total"`
	Returned      int    `json:"returned"`
}

// CacheStatus is the operator-facing snapshot of the cache and the collector
type CacheStatus struct {
	TotalCached           int            `json:"total_cached"`
	PerFeedCounts         map[string]int `json:"per_feed_counts"`
	IsLoading             bool           `json:"is_loading"`
	LoadingElapsedSeconds float64        `json:"loading_elapsed_seconds"`
	CacheAgeSeconds       float64        `json:"cache_age_seconds"`
}
