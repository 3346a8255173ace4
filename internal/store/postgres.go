package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/market-match/internal/candidate"
	"github.com/sells-group/market-match/internal/db"
	"github.com/sells-group/market-match/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Names of the hot-path statements of the orchestrator and the status
// synchronizer.
const (
	stmtIncrementPreferenceMatches = "increment_preference_matches"
	stmtUpdateMatchListingStatus   = "update_match_listing_status"
	stmtGetSeller                  = "get_seller"
)

// preparedStatements is prepared on each new connection and executed by name.
var preparedStatements = map[string]string{
	stmtIncrementPreferenceMatches: `UPDATE buyer_preferences SET match_count = match_count + 1, last_matched_at = GREATEST(COALESCE(last_matched_at, $2), $2) WHERE id = $1`,
	stmtUpdateMatchListingStatus:   `UPDATE buyer_preference_matches SET listing_status = $1, listing_status_updated_at = $2, updated_at = $2 WHERE listing_id = $3 AND listing_status <> $1`,
	stmtGetSeller:                  `SELECT id, name, email, COALESCE(phone, '') FROM users WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	phone      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listings (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seller_id       TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT,
	price           NUMERIC(12,2) NOT NULL,
	currency        TEXT NOT NULL DEFAULT 'NPR',
	category        TEXT NOT NULL,
	subcategory     TEXT,
	sub_subcategory TEXT,
	condition       TEXT,
	listing_type    TEXT NOT NULL DEFAULT 'product' CHECK (listing_type IN ('product', 'service')),
	tags            TEXT[] NOT NULL DEFAULT '{}',
	enriched_tags   TEXT[] NOT NULL DEFAULT '{}',
	is_negotiable   BOOLEAN NOT NULL DEFAULT false,
	latitude        DOUBLE PRECISION,
	longitude       DOUBLE PRECISION,
	location_data   JSONB,
	status          TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'sold', 'expired', 'removed')),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_listings_status_expires ON listings(status, expires_at);

CREATE TABLE IF NOT EXISTS buyer_preferences (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	buyer_id        TEXT NOT NULL,
	preference_text TEXT NOT NULL,
	keywords        TEXT[] NOT NULL DEFAULT '{}',
	category        TEXT,
	subcategory     TEXT,
	sub_subcategory TEXT,
	min_price       NUMERIC(12,2),
	max_price       NUMERIC(12,2),
	currency        TEXT NOT NULL DEFAULT 'NPR',
	listing_type    TEXT CHECK (listing_type IN ('product', 'service')),
	latitude        DOUBLE PRECISION,
	longitude       DOUBLE PRECISION,
	location_data   JSONB,
	status          TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive', 'paused')),
	match_count     INTEGER NOT NULL DEFAULT 0,
	last_matched_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_buyer_preferences_buyer ON buyer_preferences(buyer_id);
CREATE INDEX IF NOT EXISTS idx_buyer_preferences_filter ON buyer_preferences(status, category, listing_type);
CREATE INDEX IF NOT EXISTS idx_buyer_preferences_created ON buyer_preferences(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_buyer_preferences_location ON buyer_preferences(latitude, longitude);

CREATE TABLE IF NOT EXISTS buyer_preference_matches (
	id                        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	preference_id             TEXT NOT NULL REFERENCES buyer_preferences(id) ON DELETE CASCADE,
	buyer_id                  TEXT NOT NULL,
	listing_id                TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	match_score               INTEGER NOT NULL CHECK (match_score >= 0 AND match_score <= 100),
	match_reason              TEXT NOT NULL,
	listing_snapshot          JSONB NOT NULL,
	status                    TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'viewed', 'interested', 'contacted', 'dismissed')),
	listing_status            TEXT NOT NULL DEFAULT 'active' CHECK (listing_status IN ('active', 'sold', 'expired', 'removed')),
	listing_status_updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	matched_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	viewed_at                 TIMESTAMPTZ,
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (preference_id, listing_id)
);

CREATE INDEX IF NOT EXISTS idx_matches_buyer ON buyer_preference_matches(buyer_id);
CREATE INDEX IF NOT EXISTS idx_matches_buyer_status ON buyer_preference_matches(buyer_id, status);
CREATE INDEX IF NOT EXISTS idx_matches_listing ON buyer_preference_matches(listing_id);
CREATE INDEX IF NOT EXISTS idx_matches_listing_status ON buyer_preference_matches(listing_id, listing_status);
CREATE INDEX IF NOT EXISTS idx_matches_score ON buyer_preference_matches(match_score DESC);
CREATE INDEX IF NOT EXISTS idx_matches_matched_at ON buyer_preference_matches(matched_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Preferences ---

const pgPreferenceColumns = `id, buyer_id, preference_text, keywords,
	COALESCE(category, ''), COALESCE(subcategory, ''), COALESCE(sub_subcategory, ''),
	min_price::float8, max_price::float8, currency, COALESCE(listing_type, ''),
	location_data, status, match_count, last_matched_at, created_at, updated_at`

func (s *PostgresStore) CreatePreference(ctx context.Context, p *model.BuyerPreference) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.PreferenceActive
	}
	p.CreatedAt, p.UpdatedAt = now, now

	locJSON, lat, lng, err := encodeLocation(p.Location)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal preference location")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO buyer_preferences
			(id, buyer_id, preference_text, keywords, category, subcategory, sub_subcategory,
			 min_price, max_price, currency, listing_type, latitude, longitude, location_data,
			 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			$8, $9, $10, NULLIF($11, ''), $12, $13, $14, $15, $16, $16)`,
		p.ID, p.BuyerID, p.Text, nonNil(p.Keywords), p.Category, p.Subcategory, p.SubSubcategory,
		p.MinPrice, p.MaxPrice, p.Currency, string(p.ListingType), lat, lng, locJSON,
		string(p.Status), now,
	)
	return eris.Wrap(err, "postgres: insert preference")
}

func (s *PostgresStore) GetPreference(ctx context.Context, id string) (*model.BuyerPreference, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgPreferenceColumns+` FROM buyer_preferences WHERE id = $1`, id)
	p, err := scanPreference(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "preference %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get preference %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPreferences(ctx context.Context, filter PreferenceFilter) ([]model.BuyerPreference, int, error) {
	page := filter.Page.Normalize()

	where := ` WHERE buyer_id = $1`
	args := []any{filter.BuyerID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM buyer_preferences`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count preferences")
	}

	query := `SELECT ` + pgPreferenceColumns + ` FROM buyer_preferences` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	prefs, err := s.queryPreferences(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list preferences")
	}
	return prefs, total, nil
}

func (s *PostgresStore) UpdatePreference(ctx context.Context, p *model.BuyerPreference) error {
	now := time.Now().UTC()
	locJSON, lat, lng, err := encodeLocation(p.Location)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal preference location")
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE buyer_preferences SET
			preference_text = $1, keywords = $2, category = NULLIF($3, ''), subcategory = NULLIF($4, ''),
			sub_subcategory = NULLIF($5, ''), min_price = $6, max_price = $7, currency = $8,
			listing_type = NULLIF($9, ''), latitude = $10, longitude = $11, location_data = $12,
			status = $13, updated_at = $14
		WHERE id = $15 AND buyer_id = $16`,
		p.Text, nonNil(p.Keywords), p.Category, p.Subcategory,
		p.SubSubcategory, p.MinPrice, p.MaxPrice, p.Currency,
		string(p.ListingType), lat, lng, locJSON,
		string(p.Status), now,
		p.ID, p.BuyerID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update preference %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "preference %s", p.ID)
	}
	p.UpdatedAt = now
	return nil
}

func (s *PostgresStore) DeletePreference(ctx context.Context, id, buyerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM buyer_preferences WHERE id = $1 AND buyer_id = $2`, id, buyerID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete preference %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "preference %s", id)
	}
	return nil
}

func (s *PostgresStore) FindCandidates(ctx context.Context, c candidate.Criteria) ([]model.BuyerPreference, error) {
	where, args := candidate.Build(c.Predicates(), candidate.Dollar, 0)
	limit := c.Limit
	if limit <= 0 {
		limit = candidate.Limit
	}
	args = append(args, limit)
	query := `SELECT ` + pgPreferenceColumns + ` FROM buyer_preferences WHERE ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	prefs, err := s.queryPreferences(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find candidates")
	}
	return prefs, nil
}

func (s *PostgresStore) queryPreferences(ctx context.Context, query string, args ...any) ([]model.BuyerPreference, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []model.BuyerPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, *p)
	}
	return prefs, rows.Err()
}

// --- Listings ---

const pgListingColumns = `id, seller_id, title, COALESCE(description, ''), price::text, currency,
	category, COALESCE(subcategory, ''), COALESCE(sub_subcategory, ''), COALESCE(condition, ''),
	listing_type, tags, enriched_tags, is_negotiable, location_data, status, created_at, expires_at`

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	var (
		l   model.Listing
		loc []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT `+pgListingColumns+` FROM listings WHERE id = $1`, id).Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Price, &l.Currency,
		&l.Category, &l.Subcategory, &l.SubSubcategory, &l.Condition,
		&l.ListingType, &l.Tags, &l.EnrichedTags, &l.IsNegotiable, &loc, &l.Status, &l.CreatedAt, &l.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "listing %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get listing %s", id)
	}
	if l.Location, err = decodeLocation(loc); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal listing %s location", id)
	}
	return &l, nil
}

func (s *PostgresStore) GetSeller(ctx context.Context, id string) (*model.Seller, error) {
	var sl model.Seller
	err := s.pool.QueryRow(ctx, stmtGetSeller, id).Scan(&sl.ID, &sl.Name, &sl.Email, &sl.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "seller %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get seller %s", id)
	}
	return &sl, nil
}

// --- Matches ---

const pgMatchColumns = `m.id, m.preference_id, m.buyer_id, m.listing_id, m.match_score, m.match_reason,
	m.listing_snapshot, m.status, m.listing_status, m.listing_status_updated_at,
	m.matched_at, m.viewed_at, m.updated_at`

// CreateMatch inserts m unless the (preference, listing) pair already has a
// match. The buyer is copied from the preference row and the preference's
// match telemetry is bumped in the same transaction. It reports whether a row
// was inserted.
func (s *PostgresStore) CreateMatch(ctx context.Context, m *model.Match) (bool, error) {
	snap, err := json.Marshal(m.Snapshot)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal snapshot")
	}
	now := m.MatchedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	listingStatus := m.ListingStatus
	if listingStatus == "" {
		listingStatus = model.ListingActive
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "postgres: begin create match")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id := uuid.New().String()
	var buyerID string
	err = tx.QueryRow(ctx, `
		INSERT INTO buyer_preference_matches
			(id, preference_id, buyer_id, listing_id, match_score, match_reason, listing_snapshot,
			 status, listing_status, listing_status_updated_at, matched_at, updated_at)
		SELECT $1::text, bp.id, bp.buyer_id, $3::text, $4::int, $5::text, $6::jsonb,
			'new', $7::text, $8::timestamptz, $8::timestamptz, $8::timestamptz
		FROM buyer_preferences bp WHERE bp.id = $2
		ON CONFLICT (preference_id, listing_id) DO NOTHING
		RETURNING buyer_id`,
		id, m.PreferenceID, m.ListingID, m.Score, m.Reason, snap, string(listingStatus), now,
	).Scan(&buyerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert match %s/%s", m.PreferenceID, m.ListingID)
	}

	if _, err := tx.Exec(ctx, stmtIncrementPreferenceMatches, m.PreferenceID, now); err != nil {
		return false, eris.Wrapf(err, "postgres: bump preference %s telemetry", m.PreferenceID)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, eris.Wrap(err, "postgres: commit create match")
	}

	m.ID = id
	m.BuyerID = buyerID
	m.Status = model.MatchNew
	m.ListingStatus = listingStatus
	m.ListingStatusUpdatedAt, m.MatchedAt, m.UpdatedAt = now, now, now
	return true, nil
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgMatchColumns+` FROM buyer_preference_matches m WHERE m.id = $1`, id)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "match %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get match %s", id)
	}
	return m, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, filter MatchFilter) ([]model.MatchView, int, error) {
	page := filter.Page.Normalize()

	where := ` WHERE m.buyer_id = $1`
	args := []any{filter.BuyerID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND m.status = $%d", len(args))
	}
	if filter.PreferenceID != "" {
		args = append(args, filter.PreferenceID)
		where += fmt.Sprintf(" AND m.preference_id = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM buyer_preference_matches m`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count matches")
	}

	query := `SELECT ` + pgMatchColumns + `, bp.preference_text, (l.id IS NOT NULL AND l.status = 'active')
		FROM buyer_preference_matches m
		JOIN buyer_preferences bp ON bp.id = m.preference_id
		LEFT JOIN listings l ON l.id = m.listing_id` + where +
		` ORDER BY ` + filter.Sort.orderBy() +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list matches")
	}
	defer rows.Close()

	var views []model.MatchView
	for rows.Next() {
		v, err := scanMatchView(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan match view")
		}
		views = append(views, *v)
	}
	return views, total, eris.Wrap(rows.Err(), "postgres: list matches iterate")
}

func (s *PostgresStore) UpdateMatchStatus(ctx context.Context, id string, status model.MatchStatus, markViewed bool, at time.Time) (*model.Match, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE buyer_preference_matches m SET
			status = $1,
			updated_at = $2,
			viewed_at = CASE WHEN $3::boolean AND m.viewed_at IS NULL THEN $2 ELSE m.viewed_at END
		WHERE m.id = $4
		RETURNING `+pgMatchColumns,
		string(status), at, markViewed, id,
	)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "match %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update match status %s", id)
	}
	return m, nil
}

func (s *PostgresStore) MatchStats(ctx context.Context, buyerID string, now time.Time) (*model.MatchStats, error) {
	stats := model.NewMatchStats()

	var avg float64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(match_score), 0)::float8, COALESCE(MAX(match_score), 0),
			COUNT(*) FILTER (WHERE matched_at >= $2), COUNT(*) FILTER (WHERE matched_at >= $3)
		FROM buyer_preference_matches WHERE buyer_id = $1`,
		buyerID, now.AddDate(0, 0, -7), now.AddDate(0, 0, -30),
	).Scan(&stats.Total, &avg, &stats.BestScore, &stats.LastWeek, &stats.LastMonth)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: match stats")
	}
	stats.AverageScore = math.Round(avg*10) / 10

	rows, err := s.pool.Query(ctx, `
		SELECT 'status', status, COUNT(*) FROM buyer_preference_matches WHERE buyer_id = $1 GROUP BY status
		UNION ALL
		SELECT 'listing_status', listing_status, COUNT(*) FROM buyer_preference_matches WHERE buyer_id = $1 GROUP BY listing_status`,
		buyerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: match stats buckets")
	}
	defer rows.Close()
	for rows.Next() {
		var kind, key string
		var n int
		if err := rows.Scan(&kind, &key, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats bucket")
		}
		addBucket(stats, kind, key, n)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: match stats iterate")
}

// --- Listing status mirror ---

func (s *PostgresStore) UpdateMatchListingStatus(ctx context.Context, listingID string, status model.ListingStatus, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, stmtUpdateMatchListingStatus, string(status), at, listingID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: sync listing %s status", listingID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ExpireListings(ctx context.Context, now time.Time) ([]model.ListingRef, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE listings SET status = 'expired', updated_at = $1 WHERE expires_at < $1 AND status = 'active' RETURNING id, title`,
		now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: expire listings")
	}
	defer rows.Close()

	var refs []model.ListingRef
	for rows.Next() {
		var r model.ListingRef
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			return nil, eris.Wrap(err, "postgres: scan expired listing")
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "postgres: expire listings iterate")
}

func (s *PostgresStore) ReconcileListingStatus(ctx context.Context, at time.Time) (map[model.ListingStatus]int, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE buyer_preference_matches m
		SET listing_status = l.status, listing_status_updated_at = $1, updated_at = $1
		FROM listings l
		WHERE m.listing_id = l.id AND m.listing_status <> l.status
		RETURNING m.listing_status`,
		at,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: reconcile listing status")
	}
	defer rows.Close()

	fixed := make(map[model.ListingStatus]int)
	for rows.Next() {
		var st model.ListingStatus
		if err := rows.Scan(&st); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reconciled match")
		}
		fixed[st]++
	}
	return fixed, eris.Wrap(rows.Err(), "postgres: reconcile iterate")
}

// --- scanning ---

func scanPreference(row scannable) (*model.BuyerPreference, error) {
	var (
		p   model.BuyerPreference
		loc []byte
	)
	err := row.Scan(
		&p.ID, &p.BuyerID, &p.Text, &p.Keywords,
		&p.Category, &p.Subcategory, &p.SubSubcategory,
		&p.MinPrice, &p.MaxPrice, &p.Currency, &p.ListingType,
		&loc, &p.Status, &p.MatchCount, &p.LastMatchedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Location, err = decodeLocation(loc); err != nil {
		return nil, eris.Wrap(err, "unmarshal preference location")
	}
	return &p, nil
}

func scanMatch(row scannable) (*model.Match, error) {
	var (
		m    model.Match
		snap []byte
	)
	err := row.Scan(
		&m.ID, &m.PreferenceID, &m.BuyerID, &m.ListingID, &m.Score, &m.Reason,
		&snap, &m.Status, &m.ListingStatus, &m.ListingStatusUpdatedAt,
		&m.MatchedAt, &m.ViewedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snap, &m.Snapshot); err != nil {
		return nil, eris.Wrap(err, "unmarshal snapshot")
	}
	return &m, nil
}

func scanMatchView(row scannable) (*model.MatchView, error) {
	var (
		v    model.MatchView
		snap []byte
	)
	err := row.Scan(
		&v.ID, &v.PreferenceID, &v.BuyerID, &v.ListingID, &v.Score, &v.Reason,
		&snap, &v.Status, &v.ListingStatus, &v.ListingStatusUpdatedAt,
		&v.MatchedAt, &v.ViewedAt, &v.UpdatedAt,
		&v.PreferenceText, &v.IsListingAvailable,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snap, &v.Snapshot); err != nil {
		return nil, eris.Wrap(err, "unmarshal snapshot")
	}
	return &v, nil
}
