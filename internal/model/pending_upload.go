package model

import "time"

// ImageKind identifies which of the three observation photos an image is.
type ImageKind string

const (
	ImageKindBarcode ImageKind = "barcode"
	ImageKindPrice   ImageKind = "price"
	ImageKindProduct ImageKind = "product"
)

// ImageKinds lists all attachment kinds in submission order.
var ImageKinds = []ImageKind{ImageKindBarcode, ImageKindPrice, ImageKindProduct}

// PendingUpload is a queued price observation awaiting delivery.
type PendingUpload struct {
	ID          string     `json:"id"`
	EAN         *string    `json:"ean"`
	ProductName *string    `json:"product_name"`
	PriceCents  int64      `json:"price_cents"`
	ShopGersID  string     `json:"shop_gers_id"`
	ScannedAt   time.Time  `json:"scanned_at"`

	BarcodeImagePath     *string `json:"barcode_image_path"`
	BarcodeImageURL      *string `json:"barcode_image_url"`
	BarcodeImageUploaded bool    `json:"barcode_image_uploaded"`

	PriceImagePath     *string `json:"price_image_path"`
	PriceImageURL      *string `json:"price_image_url"`
	PriceImageUploaded bool    `json:"price_image_uploaded"`

	ProductImagePath     *string `json:"product_image_path"`
	ProductImageURL      *string `json:"product_image_url"`
	ProductImageUploaded bool    `json:"product_image_uploaded"`

	DataUploaded   bool       `json:"data_uploaded"`
	UploadAttempts int        `json:"upload_attempts"`
	LastAttemptAt  *time.Time `json:"last_attempt_at"`
	LastError      *string    `json:"last_error"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Attachment is a read view of one image slot on a pending upload.
type Attachment struct {
	Kind      ImageKind
	LocalPath *string
	PublicURL *string
	Uploaded  bool
}

// Attachments returns the three image slots in submission order.
func (p *PendingUpload) Attachments() []Attachment {
	return []Attachment{
		{ImageKindBarcode, p.BarcodeImagePath, p.BarcodeImageURL, p.BarcodeImageUploaded},
		{ImageKindPrice, p.PriceImagePath, p.PriceImageURL, p.PriceImageUploaded},
		{ImageKindProduct, p.ProductImagePath, p.ProductImageURL, p.ProductImageUploaded},
	}
}

// SetAttachmentUploaded records a completed image upload on the in-memory item.
func (p *PendingUpload) SetAttachmentUploaded(kind ImageKind, publicURL string) {
	switch kind {
	case ImageKindBarcode:
		p.BarcodeImageURL = &publicURL
		p.BarcodeImageUploaded = true
	case ImageKindPrice:
		p.PriceImageURL = &publicURL
		p.PriceImageUploaded = true
	case ImageKindProduct:
		p.ProductImageURL = &publicURL
		p.ProductImageUploaded = true
	}
}

// LocalImagePaths returns every attachment path that is set.
func (p *PendingUpload) LocalImagePaths() []string {
	var paths []string
	for _, a := range p.Attachments() {
		if a.LocalPath != nil && *a.LocalPath != "" {
			paths = append(paths, *a.LocalPath)
		}
	}
	return paths
}
