package domain

// StatusSnapshot reports how many articles currently sit in each store.
// Counts are read independently and may be momentarily inconsistent with
// each other while moves are in flight.
type StatusSnapshot struct {
	Staged   int64 `json:"staged"`
	Archived int64 `json:"archived"`
}
