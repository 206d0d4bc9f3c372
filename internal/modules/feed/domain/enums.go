//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// OverlapPolicy controls what a collect call does while another one is in flight
// ENUM(wait,empty)
type OverlapPolicy string
