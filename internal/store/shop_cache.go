package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/open2log/open2log-go/internal/geo"
	"github.com/open2log/open2log-go/internal/model"
)

// DefaultCacheTTL is how long a cached shop stays fresh.
const DefaultCacheTTL = 7 * 24 * time.Hour

// ShopCacheStore persists the time-bounded offline copy of nearby shops.
// Records are keyed by shop identifier with upsert semantics.
type ShopCacheStore struct {
	db *sql.DB
}

func NewShopCacheStore(db *sql.DB) *ShopCacheStore {
	return &ShopCacheStore{db: db}
}

const cachedShopCols = `id, gers_id, name, chain, address, city, postal_code, country,
	latitude, longitude, h3_index, opening_hours_json, cached_at, expires_at`

func scanCachedShop(scanner interface{ Scan(...any) error }) (*model.CachedShop, error) {
	var s model.CachedShop
	var gersID, h3Index, hoursJSON sql.NullString

	err := scanner.Scan(
		&s.ID, &gersID, &s.Name, &s.Chain, &s.Address, &s.City, &s.PostalCode, &s.Country,
		&s.Latitude, &s.Longitude, &h3Index, &hoursJSON, &s.CachedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if gersID.Valid {
		s.GersID = &gersID.String
	}
	if h3Index.Valid {
		s.H3Index = &h3Index.String
	}
	if hoursJSON.Valid && hoursJSON.String != "" {
		// A cache row with unreadable hours is still a usable shop record.
		_ = json.Unmarshal([]byte(hoursJSON.String), &s.OpeningHours)
	}

	return &s, nil
}

// UpsertMany refreshes the cache from a remote shop list. Expired rows are
// pruned first; incoming shops update the existing row (advancing cached_at
// and expires_at) or insert a new one. A non-positive ttl uses the default.
func (s *ShopCacheStore) UpsertMany(shops []model.Shop, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	if err := s.PruneExpired(); err != nil {
		return err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache upsert: %w", err)
	}
	defer tx.Rollback()

	for _, shop := range shops {
		var hoursJSON *string
		if len(shop.OpeningHours) > 0 {
			data, err := json.Marshal(shop.OpeningHours)
			if err != nil {
				return fmt.Errorf("marshal opening hours: %w", err)
			}
			str := string(data)
			hoursJSON = &str
		}

		_, err := tx.Exec(`
			INSERT INTO cached_shops (`+cachedShopCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				gers_id = excluded.gers_id,
				name = excluded.name,
				chain = excluded.chain,
				address = excluded.address,
				city = excluded.city,
				postal_code = excluded.postal_code,
				country = excluded.country,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				h3_index = excluded.h3_index,
				opening_hours_json = excluded.opening_hours_json,
				cached_at = excluded.cached_at,
				expires_at = excluded.expires_at`,
			shop.ID, shop.GersID, shop.Name, shop.Chain, shop.Address, shop.City,
			shop.PostalCode, shop.Country, shop.Latitude, shop.Longitude,
			shop.H3Index, hoursJSON, now, expiresAt,
		)
		if err != nil {
			return fmt.Errorf("upsert cached shop %s: %w", shop.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache upsert: %w", err)
	}
	return nil
}

// ListFresh returns all cached shops whose expiry has not passed.
func (s *ShopCacheStore) ListFresh() ([]*model.CachedShop, error) {
	return s.list(`SELECT ` + cachedShopCols + ` FROM cached_shops
		WHERE expires_at > datetime('now') ORDER BY name ASC`)
}

// ListFreshNear returns fresh cached shops within radiusKm of the center.
func (s *ShopCacheStore) ListFreshNear(lat, lon, radiusKm float64) ([]*model.CachedShop, error) {
	fresh, err := s.ListFresh()
	if err != nil {
		return nil, err
	}

	radiusMeters := radiusKm * 1000
	var near []*model.CachedShop
	for _, shop := range fresh {
		if geo.DistanceMeters(lat, lon, shop.Latitude, shop.Longitude) <= radiusMeters {
			near = append(near, shop)
		}
	}
	return near, nil
}

// FindByExternalCode returns the first cached shop with the given external
// reference code, or nil when none matches.
func (s *ShopCacheStore) FindByExternalCode(code string) (*model.CachedShop, error) {
	row := s.db.QueryRow(`SELECT `+cachedShopCols+` FROM cached_shops WHERE gers_id = ? LIMIT 1`, code)
	shop, err := scanCachedShop(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cached shop: %w", err)
	}
	return shop, nil
}

// CountFresh returns the number of unexpired cached shops.
func (s *ShopCacheStore) CountFresh() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cached_shops WHERE expires_at > datetime('now')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fresh shops: %w", err)
	}
	return n, nil
}

// PruneExpired deletes all expired cache rows.
func (s *ShopCacheStore) PruneExpired() error {
	_, err := s.db.Exec(`DELETE FROM cached_shops WHERE expires_at < datetime('now')`)
	if err != nil {
		return fmt.Errorf("prune expired shops: %w", err)
	}
	return nil
}

// ClearAll deletes every cache row regardless of expiry.
func (s *ShopCacheStore) ClearAll() error {
	_, err := s.db.Exec(`DELETE FROM cached_shops`)
	if err != nil {
		return fmt.Errorf("clear shop cache: %w", err)
	}
	return nil
}

func (s *ShopCacheStore) list(query string, args ...any) ([]*model.CachedShop, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cached shops: %w", err)
	}
	defer rows.Close()

	var shops []*model.CachedShop
	for rows.Next() {
		shop, err := scanCachedShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cached shop: %w", err)
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}
