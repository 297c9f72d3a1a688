package model

import "time"

// Shop is a point-of-interest record as returned by the remote service.
type Shop struct {
	ID           string            `json:"id"`
	GersID       *string           `json:"gers_id"`
	Name         string            `json:"name"`
	Chain        string            `json:"chain"`
	Address      string            `json:"address"`
	City         string            `json:"city"`
	PostalCode   string            `json:"postal_code"`
	Country      string            `json:"country"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	H3Index      *string           `json:"h3_index"`
	OpeningHours map[string]string `json:"opening_hours,omitempty"`
}

// CachedShop is a Shop held in the local offline cache.
type CachedShop struct {
	Shop
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
