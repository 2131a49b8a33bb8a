// Package dedup persists the signatures of previously seen lots so that
// repeat sightings across runs are recognized instead of reprocessed.
package dedup

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lotradar/server/internal/models"
)

// priceChangeThreshold is the absolute price difference (rubles) beyond
// which a known lot counts as changed rather than duplicated.
const priceChangeThreshold = 1000

// Ledger is the persistent store of lot signatures. Check-and-record runs in
// a single transaction per signature, so concurrent pipelines do not race on
// the same lot.
type Ledger struct {
	db *sql.DB
}

// Stats summarizes the ledger contents for the API and the run report.
type Stats struct {
	TotalRecords int        `json:"total_records"`
	PriceChanged int        `json:"price_changed"`
	RepeatedLots int        `json:"repeated_lots"`
	OldestRecord *time.Time `json:"oldest_record,omitempty"`
	NewestRecord *time.Time `json:"newest_record,omitempty"`
}

func NewLedger(dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// A single writer keeps check+record transactions serialized without
	// "database is locked" errors from sqlite.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS seen_lots (
			signature     TEXT PRIMARY KEY,
			address       TEXT NOT NULL,
			area          REAL NOT NULL,
			price         REAL NOT NULL,
			first_seen    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_seen     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			times_seen    INTEGER NOT NULL DEFAULT 1,
			price_changed INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return err
	}

	_, err = l.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_seen_lots_last_seen
		ON seen_lots(last_seen);
	`)
	return err
}

// CheckAndRecord looks the lot's signature up and records the sighting in
// one transaction. First sighting: inserted, not a duplicate. Known
// signature with a price moved by more than the threshold: recorded as a
// price change, still not a duplicate (new information). Otherwise a true
// duplicate; only the counters advance. A store failure is returned as a
// hard error since "can't tell" must not be read as "not a duplicate".
func (l *Ledger) CheckAndRecord(lot *models.Lot) (models.DedupResult, error) {
	signature := lot.Signature()

	tx, err := l.db.Begin()
	if err != nil {
		return models.DedupResult{}, fmt.Errorf("begin dedup transaction: %w", err)
	}
	defer tx.Rollback()

	var result models.DedupResult
	var storedPrice float64
	var firstSeen time.Time

	err = tx.QueryRow(`
		SELECT price, first_seen, times_seen
		FROM seen_lots
		WHERE signature = ?
	`, signature).Scan(&storedPrice, &firstSeen, &result.TimesSeen)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(`
			INSERT INTO seen_lots (signature, address, area, price)
			VALUES (?, ?, ?, ?)
		`, signature, lot.Address, lot.Area, lot.Price)
		if err != nil {
			return models.DedupResult{}, fmt.Errorf("record lot %s: %w", signature, err)
		}
		result.TimesSeen = 1

	case err != nil:
		return models.DedupResult{}, fmt.Errorf("lookup lot %s: %w", signature, err)

	default:
		result.PreviousPrice = storedPrice
		result.FirstSeen = firstSeen
		delta := lot.Price - storedPrice
		if delta < 0 {
			delta = -delta
		}

		if delta > priceChangeThreshold {
			result.PriceChanged = true
			_, err = tx.Exec(`
				UPDATE seen_lots
				SET price = ?, last_seen = CURRENT_TIMESTAMP,
				    times_seen = times_seen + 1, price_changed = 1
				WHERE signature = ?
			`, lot.Price, signature)
		} else {
			result.IsDuplicate = true
			_, err = tx.Exec(`
				UPDATE seen_lots
				SET last_seen = CURRENT_TIMESTAMP, times_seen = times_seen + 1
				WHERE signature = ?
			`, signature)
		}
		if err != nil {
			return models.DedupResult{}, fmt.Errorf("update lot %s: %w", signature, err)
		}
		result.TimesSeen++
	}

	if err := tx.Commit(); err != nil {
		return models.DedupResult{}, fmt.Errorf("commit dedup transaction: %w", err)
	}
	return result, nil
}

// CleanupOlderThan purges entries last seen more than the given number of
// days ago and reports how many were removed. It is invoked by the
// scheduler's maintenance job, never by lookups.
func (l *Ledger) CleanupOlderThan(days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("invalid retention period: %d days", days)
	}

	res, err := l.db.Exec(`
		DELETE FROM seen_lots
		WHERE last_seen < datetime('now', ?)
	`, fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("cleanup dedup ledger: %w", err)
	}
	return res.RowsAffected()
}

func (l *Ledger) Stats() (Stats, error) {
	var stats Stats
	var oldest, newest sql.NullTime

	err := l.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(price_changed), 0),
			COALESCE(SUM(CASE WHEN times_seen > 1 THEN 1 ELSE 0 END), 0),
			MIN(first_seen),
			MAX(last_seen)
		FROM seen_lots
	`).Scan(&stats.TotalRecords, &stats.PriceChanged, &stats.RepeatedLots, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("dedup stats: %w", err)
	}

	if oldest.Valid {
		stats.OldestRecord = &oldest.Time
	}
	if newest.Valid {
		stats.NewestRecord = &newest.Time
	}
	return stats, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
