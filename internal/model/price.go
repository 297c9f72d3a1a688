package model

import "time"

// Price is a stored price observation as returned by the remote service.
type Price struct {
	ID              string    `json:"id"`
	ProductID       *string   `json:"product_id"`
	EAN             *string   `json:"ean"`
	ShopID          *string   `json:"shop_id"`
	PriceCents      int64     `json:"price_cents"`
	BarcodeImageURL *string   `json:"barcode_image_url"`
	PriceImageURL   *string   `json:"price_image_url"`
	ScannedAt       time.Time `json:"scanned_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// PriceSubmission is the structured body for creating a price record.
type PriceSubmission struct {
	ProductID       *string   `json:"product_id,omitempty"`
	EAN             *string   `json:"ean,omitempty"`
	ShopID          string    `json:"shop_id"`
	PriceCents      int64     `json:"price_cents"`
	BarcodeImageURL *string   `json:"barcode_image_url,omitempty"`
	PriceImageURL   *string   `json:"price_image_url,omitempty"`
	ScannedAt       time.Time `json:"scanned_at"`
}

// PriceRecord is the flattened fire-and-forget submission body used by the
// sync pass. Optional keys are omitted entirely when unset.
type PriceRecord struct {
	EAN             *string   `json:"ean,omitempty"`
	ProductName     *string   `json:"product_name,omitempty"`
	PriceCents      int64     `json:"price_cents"`
	ShopGersID      string    `json:"shop_gers_id"`
	ScannedAt       time.Time `json:"scanned_at"`
	BarcodeImageURL *string   `json:"barcode_image_url,omitempty"`
	PriceImageURL   *string   `json:"price_image_url,omitempty"`
	ProductImageURL *string   `json:"product_image_url,omitempty"`
}
