package store

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/open2log/open2log-go/internal/model"
)

// MaxUploadAttempts is the retry ceiling; items at or above it are no longer
// selected for sync passes.
const MaxUploadAttempts = 10

// PendingUploadStore persists queued price observations. Every mutation is
// durable before it returns.
type PendingUploadStore struct {
	db *sql.DB
}

func NewPendingUploadStore(db *sql.DB) *PendingUploadStore {
	return &PendingUploadStore{db: db}
}

const pendingUploadCols = `id, ean, product_name, price_cents, shop_gers_id, scanned_at,
	barcode_image_path, barcode_image_url, barcode_image_uploaded,
	price_image_path, price_image_url, price_image_uploaded,
	product_image_path, product_image_url, product_image_uploaded,
	data_uploaded, upload_attempts, last_attempt_at, last_error, created_at`

func scanPendingUpload(scanner interface{ Scan(...any) error }) (*model.PendingUpload, error) {
	var p model.PendingUpload
	var ean, productName, lastError sql.NullString
	var barcodePath, barcodeURL, pricePath, priceURL, productPath, productURL sql.NullString
	var lastAttemptAt sql.NullTime
	var barcodeUploaded, priceUploaded, productUploaded, dataUploaded int

	err := scanner.Scan(
		&p.ID, &ean, &productName, &p.PriceCents, &p.ShopGersID, &p.ScannedAt,
		&barcodePath, &barcodeURL, &barcodeUploaded,
		&pricePath, &priceURL, &priceUploaded,
		&productPath, &productURL, &productUploaded,
		&dataUploaded, &p.UploadAttempts, &lastAttemptAt, &lastError, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ean.Valid {
		p.EAN = &ean.String
	}
	if productName.Valid {
		p.ProductName = &productName.String
	}
	if barcodePath.Valid {
		p.BarcodeImagePath = &barcodePath.String
	}
	if barcodeURL.Valid {
		p.BarcodeImageURL = &barcodeURL.String
	}
	if pricePath.Valid {
		p.PriceImagePath = &pricePath.String
	}
	if priceURL.Valid {
		p.PriceImageURL = &priceURL.String
	}
	if productPath.Valid {
		p.ProductImagePath = &productPath.String
	}
	if productURL.Valid {
		p.ProductImageURL = &productURL.String
	}
	if lastAttemptAt.Valid {
		p.LastAttemptAt = &lastAttemptAt.Time
	}
	if lastError.Valid {
		p.LastError = &lastError.String
	}
	p.BarcodeImageUploaded = barcodeUploaded != 0
	p.PriceImageUploaded = priceUploaded != 0
	p.ProductImageUploaded = productUploaded != 0
	p.DataUploaded = dataUploaded != 0

	return &p, nil
}

// Save inserts a new pending upload.
func (s *PendingUploadStore) Save(p *model.PendingUpload) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO pending_uploads (`+pendingUploadCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.EAN, p.ProductName, p.PriceCents, p.ShopGersID, p.ScannedAt.UTC(),
		p.BarcodeImagePath, p.BarcodeImageURL, boolToInt(p.BarcodeImageUploaded),
		p.PriceImagePath, p.PriceImageURL, boolToInt(p.PriceImageUploaded),
		p.ProductImagePath, p.ProductImageURL, boolToInt(p.ProductImageUploaded),
		boolToInt(p.DataUploaded), p.UploadAttempts, p.LastAttemptAt, p.LastError, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save pending upload: %w", err)
	}
	return nil
}

// ListPending returns all undelivered items, oldest capture first.
func (s *PendingUploadStore) ListPending() ([]*model.PendingUpload, error) {
	return s.list(`SELECT ` + pendingUploadCols + ` FROM pending_uploads
		WHERE data_uploaded = 0 ORDER BY scanned_at ASC`)
}

// ListRetryable returns undelivered items still under the attempt ceiling,
// oldest capture first. This is the set a sync pass operates on.
func (s *PendingUploadStore) ListRetryable() ([]*model.PendingUpload, error) {
	return s.list(`SELECT `+pendingUploadCols+` FROM pending_uploads
		WHERE data_uploaded = 0 AND upload_attempts < ? ORDER BY scanned_at ASC`, MaxUploadAttempts)
}

// ListStalled returns undelivered items that exhausted the attempt ceiling.
func (s *PendingUploadStore) ListStalled() ([]*model.PendingUpload, error) {
	return s.list(`SELECT `+pendingUploadCols+` FROM pending_uploads
		WHERE data_uploaded = 0 AND upload_attempts >= ? ORDER BY scanned_at ASC`, MaxUploadAttempts)
}

func (s *PendingUploadStore) list(query string, args ...any) ([]*model.PendingUpload, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending uploads: %w", err)
	}
	defer rows.Close()

	var items []*model.PendingUpload
	for rows.Next() {
		p, err := scanPendingUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending upload: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// CountPending returns the number of undelivered items.
func (s *PendingUploadStore) CountPending() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_uploads WHERE data_uploaded = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending uploads: %w", err)
	}
	return n, nil
}

// CountStalled returns the number of undelivered items at the attempt ceiling.
func (s *PendingUploadStore) CountStalled() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_uploads
		WHERE data_uploaded = 0 AND upload_attempts >= ?`, MaxUploadAttempts).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count stalled uploads: %w", err)
	}
	return n, nil
}

// MarkAttachmentUploaded persists an attachment's uploaded flag together with
// its public reference, so an interrupted pass can resume with the full set
// of image links.
func (s *PendingUploadStore) MarkAttachmentUploaded(id string, kind model.ImageKind, publicURL string) error {
	var flagCol, urlCol string
	switch kind {
	case model.ImageKindBarcode:
		flagCol, urlCol = "barcode_image_uploaded", "barcode_image_url"
	case model.ImageKindPrice:
		flagCol, urlCol = "price_image_uploaded", "price_image_url"
	case model.ImageKindProduct:
		flagCol, urlCol = "product_image_uploaded", "product_image_url"
	default:
		return fmt.Errorf("unknown image kind %q", kind)
	}

	res, err := s.db.Exec(`UPDATE pending_uploads SET `+flagCol+` = 1, `+urlCol+` = ? WHERE id = ?`,
		publicURL, id)
	if err != nil {
		return fmt.Errorf("mark %s image uploaded: %w", kind, err)
	}
	return oneRowUpdated(res, fmt.Sprintf("mark %s image uploaded %s", kind, id))
}

// MarkComplete records a successful final submission. The in-memory item is
// only updated once the row is confirmed written.
func (s *PendingUploadStore) MarkComplete(p *model.PendingUpload) error {
	res, err := s.db.Exec(`UPDATE pending_uploads SET data_uploaded = 1 WHERE id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("mark upload complete: %w", err)
	}
	if err := oneRowUpdated(res, "mark upload complete "+p.ID); err != nil {
		return err
	}
	p.DataUploaded = true
	return nil
}

// MarkFailed records a failed sync attempt. Attachment flags and data_uploaded
// are left untouched so partial progress survives for the next pass. The
// in-memory item is only updated once the row is confirmed written.
func (s *PendingUploadStore) MarkFailed(p *model.PendingUpload, errText string) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE pending_uploads
		SET upload_attempts = upload_attempts + 1, last_attempt_at = ?, last_error = ?
		WHERE id = ?`, now, errText, p.ID)
	if err != nil {
		return fmt.Errorf("mark upload failed: %w", err)
	}
	if err := oneRowUpdated(res, "mark upload failed "+p.ID); err != nil {
		return err
	}
	p.UploadAttempts++
	p.LastAttemptAt = &now
	p.LastError = &errText
	return nil
}

// oneRowUpdated guards mutations against rows deleted out from under a sync
// pass: an update that matched nothing reports sql.ErrNoRows instead of
// silently succeeding.
func oneRowUpdated(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}

// Delete removes a pending upload record. Callers are responsible for
// removing any referenced local files first.
func (s *PendingUploadStore) Delete(p *model.PendingUpload) error {
	_, err := s.db.Exec(`DELETE FROM pending_uploads WHERE id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("delete pending upload: %w", err)
	}
	return nil
}

// ClearCompleted removes all delivered items along with their local image
// files. A missing file does not block the purge.
func (s *PendingUploadStore) ClearCompleted() error {
	completed, err := s.list(`SELECT ` + pendingUploadCols + ` FROM pending_uploads WHERE data_uploaded = 1`)
	if err != nil {
		return err
	}

	for _, p := range completed {
		for _, path := range p.LocalImagePaths() {
			_ = os.Remove(path)
		}
		if _, err := s.db.Exec(`DELETE FROM pending_uploads WHERE id = ?`, p.ID); err != nil {
			return fmt.Errorf("delete completed upload: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
