package model

import "time"

// Product is a catalog record from the remote service.
type Product struct {
	ID        string    `json:"id"`
	EAN       *string   `json:"ean"`
	Name      string    `json:"name"`
	Brand     *string   `json:"brand"`
	Category  *string   `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}
