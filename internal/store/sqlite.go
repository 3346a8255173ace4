package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/market-match/internal/candidate"
	"github.com/sells-group/market-match/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	phone      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS listings (
	id              TEXT PRIMARY KEY,
	seller_id       TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT,
	price           TEXT NOT NULL,
	currency        TEXT NOT NULL DEFAULT 'NPR',
	category        TEXT NOT NULL,
	subcategory     TEXT,
	sub_subcategory TEXT,
	condition       TEXT,
	listing_type    TEXT NOT NULL DEFAULT 'product',
	tags            TEXT NOT NULL DEFAULT '[]',
	enriched_tags   TEXT NOT NULL DEFAULT '[]',
	is_negotiable   INTEGER NOT NULL DEFAULT 0,
	latitude        REAL,
	longitude       REAL,
	location_data   TEXT,
	status          TEXT NOT NULL DEFAULT 'active',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_listings_status_expires ON listings(status, expires_at);

CREATE TABLE IF NOT EXISTS buyer_preferences (
	id              TEXT PRIMARY KEY,
	buyer_id        TEXT NOT NULL,
	preference_text TEXT NOT NULL,
	keywords        TEXT NOT NULL DEFAULT '[]',
	category        TEXT,
	subcategory     TEXT,
	sub_subcategory TEXT,
	min_price       REAL,
	max_price       REAL,
	currency        TEXT NOT NULL DEFAULT 'NPR',
	listing_type    TEXT,
	latitude        REAL,
	longitude       REAL,
	location_data   TEXT,
	status          TEXT NOT NULL DEFAULT 'active',
	match_count     INTEGER NOT NULL DEFAULT 0,
	last_matched_at DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_buyer_preferences_buyer ON buyer_preferences(buyer_id);
CREATE INDEX IF NOT EXISTS idx_buyer_preferences_filter ON buyer_preferences(status, category, listing_type);

CREATE TABLE IF NOT EXISTS buyer_preference_matches (
	id                        TEXT PRIMARY KEY,
	preference_id             TEXT NOT NULL REFERENCES buyer_preferences(id) ON DELETE CASCADE,
	buyer_id                  TEXT NOT NULL,
	listing_id                TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	match_score               INTEGER NOT NULL CHECK (match_score >= 0 AND match_score <= 100),
	match_reason              TEXT NOT NULL,
	listing_snapshot          TEXT NOT NULL,
	status                    TEXT NOT NULL DEFAULT 'new',
	listing_status            TEXT NOT NULL DEFAULT 'active',
	listing_status_updated_at DATETIME NOT NULL,
	matched_at                DATETIME NOT NULL,
	viewed_at                 DATETIME,
	updated_at                DATETIME NOT NULL,
	UNIQUE (preference_id, listing_id)
);

CREATE INDEX IF NOT EXISTS idx_matches_buyer_status ON buyer_preference_matches(buyer_id, status);
CREATE INDEX IF NOT EXISTS idx_matches_listing_status ON buyer_preference_matches(listing_id, listing_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Preferences ---

const sqlitePreferenceColumns = `id, buyer_id, preference_text, keywords,
	COALESCE(category, ''), COALESCE(subcategory, ''), COALESCE(sub_subcategory, ''),
	min_price, max_price, currency, COALESCE(listing_type, ''),
	location_data, status, match_count, last_matched_at, created_at, updated_at`

func (s *SQLiteStore) CreatePreference(ctx context.Context, p *model.BuyerPreference) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = model.PreferenceActive
	}
	p.CreatedAt, p.UpdatedAt = now, now

	kwJSON, err := json.Marshal(nonNil(p.Keywords))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal keywords")
	}
	locJSON, lat, lng, err := encodeLocation(p.Location)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal preference location")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO buyer_preferences
			(id, buyer_id, preference_text, keywords, category, subcategory, sub_subcategory,
			 min_price, max_price, currency, listing_type, latitude, longitude, location_data,
			 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BuyerID, p.Text, string(kwJSON), p.Category, p.Subcategory, p.SubSubcategory,
		p.MinPrice, p.MaxPrice, p.Currency, string(p.ListingType), lat, lng, nullableText(locJSON),
		string(p.Status), now, now,
	)
	return eris.Wrap(err, "sqlite: insert preference")
}

func (s *SQLiteStore) GetPreference(ctx context.Context, id string) (*model.BuyerPreference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePreferenceColumns+` FROM buyer_preferences WHERE id = ?`, id)
	p, err := scanSQLitePreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "preference %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get preference %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListPreferences(ctx context.Context, filter PreferenceFilter) ([]model.BuyerPreference, int, error) {
	page := filter.Page.Normalize()

	where := ` WHERE buyer_id = ?`
	args := []any{filter.BuyerID}
	if filter.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(filter.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM buyer_preferences`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count preferences")
	}

	query := `SELECT ` + sqlitePreferenceColumns + ` FROM buyer_preferences` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset())

	prefs, err := s.queryPreferences(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list preferences")
	}
	return prefs, total, nil
}

func (s *SQLiteStore) UpdatePreference(ctx context.Context, p *model.BuyerPreference) error {
	now := time.Now().UTC()
	kwJSON, err := json.Marshal(nonNil(p.Keywords))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal keywords")
	}
	locJSON, lat, lng, err := encodeLocation(p.Location)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal preference location")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE buyer_preferences SET
			preference_text = ?, keywords = ?, category = NULLIF(?, ''), subcategory = NULLIF(?, ''),
			sub_subcategory = NULLIF(?, ''), min_price = ?, max_price = ?, currency = ?,
			listing_type = NULLIF(?, ''), latitude = ?, longitude = ?, location_data = ?,
			status = ?, updated_at = ?
		WHERE id = ? AND buyer_id = ?`,
		p.Text, string(kwJSON), p.Category, p.Subcategory,
		p.SubSubcategory, p.MinPrice, p.MaxPrice, p.Currency,
		string(p.ListingType), lat, lng, nullableText(locJSON),
		string(p.Status), now,
		p.ID, p.BuyerID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update preference %s", p.ID)
	}
	if err := checkRowsAffected(res, "preference", p.ID); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeletePreference(ctx context.Context, id, buyerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete preference")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`DELETE FROM buyer_preferences WHERE id = ? AND buyer_id = ?`, id, buyerID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete preference %s", id)
	}
	if err := checkRowsAffected(res, "preference", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM buyer_preference_matches WHERE preference_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete matches of preference %s", id)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete preference")
}

func (s *SQLiteStore) FindCandidates(ctx context.Context, c candidate.Criteria) ([]model.BuyerPreference, error) {
	where, args := candidate.Build(c.Predicates(), candidate.Question, 0)
	limit := c.Limit
	if limit <= 0 {
		limit = candidate.Limit
	}
	query := `SELECT ` + sqlitePreferenceColumns + ` FROM buyer_preferences WHERE ` + where +
		` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	prefs, err := s.queryPreferences(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find candidates")
	}
	return prefs, nil
}

func (s *SQLiteStore) queryPreferences(ctx context.Context, query string, args ...any) ([]model.BuyerPreference, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []model.BuyerPreference
	for rows.Next() {
		p, err := scanSQLitePreference(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, *p)
	}
	return prefs, rows.Err()
}

// --- Listings ---

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	var (
		l              model.Listing
		tags, enriched string
		loc            sql.NullString
		expiresAt      sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, COALESCE(description, ''), price, currency,
			category, COALESCE(subcategory, ''), COALESCE(sub_subcategory, ''), COALESCE(condition, ''),
			listing_type, tags, enriched_tags, is_negotiable, location_data, status, created_at, expires_at
		FROM listings WHERE id = ?`, id,
	).Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Price, &l.Currency,
		&l.Category, &l.Subcategory, &l.SubSubcategory, &l.Condition,
		&l.ListingType, &tags, &enriched, &l.IsNegotiable, &loc, &l.Status, &l.CreatedAt, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "listing %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get listing %s", id)
	}
	if err := json.Unmarshal([]byte(tags), &l.Tags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal listing tags")
	}
	if err := json.Unmarshal([]byte(enriched), &l.EnrichedTags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal enriched tags")
	}
	if l.Location, err = decodeLocation([]byte(loc.String)); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal listing location")
	}
	if expiresAt.Valid {
		l.ExpiresAt = &expiresAt.Time
	}
	return &l, nil
}

func (s *SQLiteStore) GetSeller(ctx context.Context, id string) (*model.Seller, error) {
	var sl model.Seller
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, COALESCE(phone, '') FROM users WHERE id = ?`, id,
	).Scan(&sl.ID, &sl.Name, &sl.Email, &sl.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "seller %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get seller %s", id)
	}
	return &sl, nil
}

// --- Matches ---

const sqliteMatchColumns = `m.id, m.preference_id, m.buyer_id, m.listing_id, m.match_score, m.match_reason,
	m.listing_snapshot, m.status, m.listing_status, m.listing_status_updated_at,
	m.matched_at, m.viewed_at, m.updated_at`

func (s *SQLiteStore) CreateMatch(ctx context.Context, m *model.Match) (bool, error) {
	snap, err := json.Marshal(m.Snapshot)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal snapshot")
	}
	now := m.MatchedAt.UTC()
	if m.MatchedAt.IsZero() {
		now = time.Now().UTC()
	}
	listingStatus := m.ListingStatus
	if listingStatus == "" {
		listingStatus = model.ListingActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin create match")
	}
	defer tx.Rollback() //nolint:errcheck

	id := uuid.New().String()
	var buyerID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO buyer_preference_matches
			(id, preference_id, buyer_id, listing_id, match_score, match_reason, listing_snapshot,
			 status, listing_status, listing_status_updated_at, matched_at, updated_at)
		SELECT ?, bp.id, bp.buyer_id, ?, ?, ?, ?, 'new', ?, ?, ?, ?
		FROM buyer_preferences bp WHERE bp.id = ?
		ON CONFLICT (preference_id, listing_id) DO NOTHING
		RETURNING buyer_id`,
		id, m.ListingID, m.Score, m.Reason, string(snap), string(listingStatus), now, now, now, m.PreferenceID,
	).Scan(&buyerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert match %s/%s", m.PreferenceID, m.ListingID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE buyer_preferences SET match_count = match_count + 1, last_matched_at = MAX(COALESCE(last_matched_at, ?), ?) WHERE id = ?`,
		now, now, m.PreferenceID,
	); err != nil {
		return false, eris.Wrapf(err, "sqlite: bump preference %s telemetry", m.PreferenceID)
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit create match")
	}

	m.ID = id
	m.BuyerID = buyerID
	m.Status = model.MatchNew
	m.ListingStatus = listingStatus
	m.ListingStatusUpdatedAt, m.MatchedAt, m.UpdatedAt = now, now, now
	return true, nil
}

func (s *SQLiteStore) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteMatchColumns+` FROM buyer_preference_matches m WHERE m.id = ?`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "match %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get match %s", id)
	}
	return m, nil
}

func (s *SQLiteStore) ListMatches(ctx context.Context, filter MatchFilter) ([]model.MatchView, int, error) {
	page := filter.Page.Normalize()

	where := ` WHERE m.buyer_id = ?`
	args := []any{filter.BuyerID}
	if filter.Status != "" {
		where += ` AND m.status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.PreferenceID != "" {
		where += ` AND m.preference_id = ?`
		args = append(args, filter.PreferenceID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM buyer_preference_matches m`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count matches")
	}

	query := `SELECT ` + sqliteMatchColumns + `, bp.preference_text, (l.id IS NOT NULL AND l.status = 'active')
		FROM buyer_preference_matches m
		JOIN buyer_preferences bp ON bp.id = m.preference_id
		LEFT JOIN listings l ON l.id = m.listing_id` + where +
		` ORDER BY ` + filter.Sort.orderBy() + ` LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list matches")
	}
	defer rows.Close()

	var views []model.MatchView
	for rows.Next() {
		v, err := scanMatchView(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan match view")
		}
		views = append(views, *v)
	}
	return views, total, eris.Wrap(rows.Err(), "sqlite: list matches iterate")
}

func (s *SQLiteStore) UpdateMatchStatus(ctx context.Context, id string, status model.MatchStatus, markViewed bool, at time.Time) (*model.Match, error) {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE buyer_preference_matches SET
			status = ?,
			updated_at = ?,
			viewed_at = CASE WHEN ? AND viewed_at IS NULL THEN ? ELSE viewed_at END
		WHERE id = ?`,
		string(status), at, markViewed, at, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update match status %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, eris.Wrapf(ErrNotFound, "match %s", id)
	}
	return s.GetMatch(ctx, id)
}

func (s *SQLiteStore) MatchStats(ctx context.Context, buyerID string, now time.Time) (*model.MatchStats, error) {
	now = now.UTC()
	stats := model.NewMatchStats()

	var avg float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(match_score), 0), COALESCE(MAX(match_score), 0),
			COALESCE(SUM(CASE WHEN matched_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN matched_at >= ? THEN 1 ELSE 0 END), 0)
		FROM buyer_preference_matches WHERE buyer_id = ?`,
		now.AddDate(0, 0, -7), now.AddDate(0, 0, -30), buyerID,
	).Scan(&stats.Total, &avg, &stats.BestScore, &stats.LastWeek, &stats.LastMonth)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: match stats")
	}
	stats.AverageScore = math.Round(avg*10) / 10

	rows, err := s.db.QueryContext(ctx, `
		SELECT 'status', status, COUNT(*) FROM buyer_preference_matches WHERE buyer_id = ? GROUP BY status
		UNION ALL
		SELECT 'listing_status', listing_status, COUNT(*) FROM buyer_preference_matches WHERE buyer_id = ? GROUP BY listing_status`,
		buyerID, buyerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: match stats buckets")
	}
	defer rows.Close()
	for rows.Next() {
		var kind, key string
		var n int
		if err := rows.Scan(&kind, &key, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats bucket")
		}
		addBucket(stats, kind, key, n)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: match stats iterate")
}

// --- Listing status mirror ---

func (s *SQLiteStore) UpdateMatchListingStatus(ctx context.Context, listingID string, status model.ListingStatus, at time.Time) (int, error) {
	at = at.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE buyer_preference_matches SET listing_status = ?, listing_status_updated_at = ?, updated_at = ? WHERE listing_id = ? AND listing_status <> ?`,
		string(status), at, at, listingID, string(status),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: sync listing %s status", listingID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ExpireListings(ctx context.Context, now time.Time) ([]model.ListingRef, error) {
	now = now.UTC()
	rows, err := s.db.QueryContext(ctx,
		`UPDATE listings SET status = 'expired', updated_at = ? WHERE expires_at < ? AND status = 'active' RETURNING id, title`,
		now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: expire listings")
	}
	defer rows.Close()

	var refs []model.ListingRef
	for rows.Next() {
		var r model.ListingRef
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan expired listing")
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "sqlite: expire listings iterate")
}

func (s *SQLiteStore) ReconcileListingStatus(ctx context.Context, at time.Time) (map[model.ListingStatus]int, error) {
	at = at.UTC()
	rows, err := s.db.QueryContext(ctx, `
		UPDATE buyer_preference_matches
		SET listing_status = l.status, listing_status_updated_at = ?, updated_at = ?
		FROM listings AS l
		WHERE buyer_preference_matches.listing_id = l.id
			AND buyer_preference_matches.listing_status <> l.status
		RETURNING listing_status`,
		at, at,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: reconcile listing status")
	}
	defer rows.Close()

	fixed := make(map[model.ListingStatus]int)
	for rows.Next() {
		var st model.ListingStatus
		if err := rows.Scan(&st); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reconciled match")
		}
		fixed[st]++
	}
	return fixed, eris.Wrap(rows.Err(), "sqlite: reconcile iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullableText(data []byte) any {
	if data == nil {
		return nil
	}
	return string(data)
}

func scanSQLitePreference(row scannable) (*model.BuyerPreference, error) {
	var (
		p      model.BuyerPreference
		kwJSON string
		loc    sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.BuyerID, &p.Text, &kwJSON,
		&p.Category, &p.Subcategory, &p.SubSubcategory,
		&p.MinPrice, &p.MaxPrice, &p.Currency, &p.ListingType,
		&loc, &p.Status, &p.MatchCount, &p.LastMatchedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(kwJSON), &p.Keywords); err != nil {
		return nil, eris.Wrap(err, "unmarshal keywords")
	}
	if p.Location, err = decodeLocation([]byte(loc.String)); err != nil {
		return nil, eris.Wrap(err, "unmarshal preference location")
	}
	return &p, nil
}
