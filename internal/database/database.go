package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fare-offers-api/internal/models"
	"fare-offers-api/internal/normalize"
)

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initSchema creates the necessary tables if they don't exist.
// seq preserves insertion order, which breaks ties between equally good offers.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS offers (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			coupon_code TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			raw_discount TEXT NOT NULL DEFAULT '',
			discount_percent REAL,
			max_discount_amount REAL,
			min_transaction_value REAL,
			validity_period TEXT,
			valid_until TEXT NOT NULL DEFAULT '',
			is_expired INTEGER NOT NULL DEFAULT 0,
			payment_methods TEXT NOT NULL DEFAULT '[]',
			payment_label TEXT NOT NULL DEFAULT '',
			source_portal TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_portal ON offers(source_portal)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_valid_until ON offers(valid_until)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_active ON offers(is_expired, source_portal, seq)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

const upsertOfferQuery = `INSERT INTO offers (
	id, coupon_code, title, raw_discount, discount_percent, max_discount_amount,
	min_transaction_value, validity_period, valid_until, is_expired,
	payment_methods, payment_label, source_portal, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	coupon_code = excluded.coupon_code,
	title = excluded.title,
	raw_discount = excluded.raw_discount,
	discount_percent = excluded.discount_percent,
	max_discount_amount = excluded.max_discount_amount,
	min_transaction_value = excluded.min_transaction_value,
	validity_period = excluded.validity_period,
	valid_until = excluded.valid_until,
	is_expired = excluded.is_expired,
	payment_methods = excluded.payment_methods,
	payment_label = excluded.payment_label,
	source_portal = excluded.source_portal,
	updated_at = excluded.updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// UpsertOffer creates or updates an offer. An update keeps the offer's
// original position in the insertion order.
func (db *DB) UpsertOffer(ctx context.Context, offer models.Offer) error {
	if err := upsertOffer(ctx, db.conn, offer); err != nil {
		return fmt.Errorf("failed to upsert offer: %w", err)
	}
	return nil
}

// UpsertOffers stores a batch of offers in a single transaction.
func (db *DB) UpsertOffers(ctx context.Context, offers []models.Offer) (int, error) {
	if len(offers) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertOfferQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	upserted := 0
	for _, offer := range offers {
		args, err := offerArgs(offer)
		if err != nil {
			return 0, fmt.Errorf("failed to encode offer %s: %w", offer.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to upsert offer %s: %w", offer.ID, err)
		}
		upserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return upserted, nil
}

func upsertOffer(ctx context.Context, exec execer, offer models.Offer) error {
	args, err := offerArgs(offer)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, upsertOfferQuery, args...)
	return err
}

func offerArgs(offer models.Offer) ([]interface{}, error) {
	if offer.ID == "" {
		return nil, fmt.Errorf("offer id is required")
	}

	portal, ok := models.ParsePortal(string(offer.SourcePortal))
	if !ok {
		return nil, fmt.Errorf("unknown portal %q", offer.SourcePortal)
	}

	methods := offer.PaymentMethods
	if methods == nil {
		methods = models.PaymentMethods{}
	}
	methodsJSON, err := json.Marshal(methods)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment methods: %w", err)
	}

	var (
		validityJSON sql.NullString
		validUntil   string
	)
	if offer.ValidityPeriod != nil {
		data, err := json.Marshal(offer.ValidityPeriod)
		if err != nil {
			return nil, fmt.Errorf("failed to encode validity period: %w", err)
		}
		validityJSON = sql.NullString{String: string(data), Valid: true}
		if end, ok := normalize.Date(offer.ValidityPeriod.End); ok {
			validUntil = end
		}
	}

	return []interface{}{
		offer.ID,
		offer.CouponCode,
		offer.Title,
		offer.RawDiscount,
		nullFloat(offer.DiscountPercent),
		nullFloat(offer.MaxDiscountAmount),
		nullFloat(offer.MinTransactionValue),
		validityJSON,
		validUntil,
		offer.IsExpired,
		string(methodsJSON),
		offer.PaymentLabel,
		string(portal),
		time.Now().UTC().Format(time.RFC3339),
	}, nil
}

const selectOfferColumns = `SELECT id, coupon_code, title, raw_discount, discount_percent,
	max_discount_amount, min_transaction_value, validity_period, is_expired,
	payment_methods, payment_label, source_portal
	FROM offers`

// LoadActiveOffers returns the coupon-bearing, non-expired offers that can
// still be valid on travelDate (YYYY-MM-DD), grouped by portal in insertion
// order. Offers without a readable end date are included.
func (db *DB) LoadActiveOffers(ctx context.Context, travelDate string) (models.PortalOfferSet, error) {
	query := selectOfferColumns + `
		WHERE is_expired = 0
		AND coupon_code <> ''
		AND (valid_until = '' OR valid_until >= ?)
		ORDER BY seq`

	offers, err := db.queryOffers(ctx, query, travelDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load active offers: %w", err)
	}

	set := make(models.PortalOfferSet, len(models.Portals))
	for _, offer := range offers {
		set[offer.SourcePortal] = append(set[offer.SourcePortal], offer)
	}
	return set, nil
}

// SampleActiveOffers returns up to limit non-expired offers in insertion order.
func (db *DB) SampleActiveOffers(ctx context.Context, limit int) ([]models.Offer, error) {
	query := selectOfferColumns + `
		WHERE is_expired = 0
		ORDER BY seq
		LIMIT ?`

	offers, err := db.queryOffers(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample offers: %w", err)
	}
	return offers, nil
}

// GetOffer returns a single offer by id, or sql.ErrNoRows.
func (db *DB) GetOffer(ctx context.Context, id string) (models.Offer, error) {
	offers, err := db.queryOffers(ctx, selectOfferColumns+` WHERE id = ?`, id)
	if err != nil {
		return models.Offer{}, fmt.Errorf("failed to get offer: %w", err)
	}
	if len(offers) == 0 {
		return models.Offer{}, sql.ErrNoRows
	}
	return offers[0], nil
}

func (db *DB) queryOffers(ctx context.Context, query string, args ...interface{}) ([]models.Offer, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		offer, ok, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			offers = append(offers, offer)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}

	return offers, nil
}

// scanOffer reads one row. Rows whose portal is no longer known are skipped.
func scanOffer(rows *sql.Rows) (models.Offer, bool, error) {
	var (
		offer                           models.Offer
		percent, maxAmount, minTxnValue sql.NullFloat64
		validityJSON                    sql.NullString
		methodsJSON, portal             string
	)

	err := rows.Scan(
		&offer.ID,
		&offer.CouponCode,
		&offer.Title,
		&offer.RawDiscount,
		&percent,
		&maxAmount,
		&minTxnValue,
		&validityJSON,
		&offer.IsExpired,
		&methodsJSON,
		&offer.PaymentLabel,
		&portal,
	)
	if err != nil {
		return models.Offer{}, false, fmt.Errorf("failed to scan offer: %w", err)
	}

	p, ok := models.ParsePortal(portal)
	if !ok {
		return models.Offer{}, false, nil
	}
	offer.SourcePortal = p

	offer.DiscountPercent = fromNullFloat(percent)
	offer.MaxDiscountAmount = fromNullFloat(maxAmount)
	offer.MinTransactionValue = fromNullFloat(minTxnValue)

	if validityJSON.Valid {
		var vp models.ValidityPeriod
		if err := json.Unmarshal([]byte(validityJSON.String), &vp); err != nil {
			return models.Offer{}, false, fmt.Errorf("failed to decode validity period of %s: %w", offer.ID, err)
		}
		offer.ValidityPeriod = &vp
	}

	if err := json.Unmarshal([]byte(methodsJSON), &offer.PaymentMethods); err != nil {
		return models.Offer{}, false, fmt.Errorf("failed to decode payment methods of %s: %w", offer.ID, err)
	}

	return offer, true, nil
}

func nullFloat(n models.Number) sql.NullFloat64 {
	return sql.NullFloat64{Float64: n.Value, Valid: n.Valid}
}

func fromNullFloat(f sql.NullFloat64) models.Number {
	if !f.Valid {
		return models.Number{}
	}
	return models.NewNumber(f.Float64)
}
