// Package storage provides SQLite-backed persistence for snapshots, scores,
// signals and the detector state checkpointed between runs.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/baseline"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db         *sql.DB
	maxMarkets int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/polyfade/research.db.
func New(maxMarkets int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "polyfade", "research.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxMarkets: maxMarkets}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS markets (
			market_id       TEXT PRIMARY KEY,
			slug            TEXT,
			question        TEXT,
			token_ids       TEXT NOT NULL DEFAULT '[]',
			end_date        INTEGER,
			volume_24hr     REAL,
			liquidity       REAL,
			last_seen       INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			ts              INTEGER NOT NULL,
			market_id       TEXT NOT NULL,
			slug            TEXT,
			token_id        TEXT,
			mid             REAL,
			spread          REAL,
			depth5          REAL,
			depth_bid       REAL,
			depth_ask       REAL,
			vol_24h         REAL,
			liquidity       REAL,
			restricted      INTEGER NOT NULL DEFAULT 0,
			ok_book         INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS bot_scores (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			ts              INTEGER NOT NULL,
			market_id       TEXT NOT NULL,
			score           REAL NOT NULL,
			regime          TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id              TEXT PRIMARY KEY,
			ts              INTEGER NOT NULL,
			market_id       TEXT NOT NULL,
			slug            TEXT,
			token_id        TEXT,
			strategy        TEXT NOT NULL,
			kind            TEXT NOT NULL,
			direction       TEXT,
			strength        REAL NOT NULL,
			mid             REAL,
			regime          TEXT NOT NULL,
			bot_score       REAL NOT NULL,
			details         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS baseline_state (
			market_id       TEXT PRIMARY KEY,
			windows         TEXT NOT NULL,
			updated_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cascade_state (
			market_id       TEXT PRIMARY KEY,
			last_mid        REAL,
			last_spread     REAL,
			last_depth5     REAL,
			updated_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prior_obs (
			market_id       TEXT PRIMARY KEY,
			mid             REAL,
			spread          REAL,
			depth5          REAL,
			vol_24h         REAL,
			updated_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_market_ts ON snapshots(market_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_bot_scores_market_ts ON bot_scores(market_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveMarkets upserts universe metadata and keeps only the maxMarkets most
// recently seen rows. Markets failing validation are skipped.
func (s *Storage) SaveMarkets(markets []models.MarketMeta, seenAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, m := range markets {
		if err := m.Validate(); err != nil {
			logger.Warn("Skipping invalid market %q: %v", m.MarketID, err)
			continue
		}
		tokens, err := json.Marshal(m.ClobTokenIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal token ids: %w", err)
		}
		var endDate sql.NullInt64
		if !m.EndDate.IsZero() {
			endDate = sql.NullInt64{Int64: m.EndDate.UnixNano(), Valid: true}
		}
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO markets
				(market_id, slug, question, token_ids, end_date, volume_24hr, liquidity, last_seen)
			VALUES (?,?,?,?,?,?,?,?)`,
			m.MarketID, m.Slug, m.Question, string(tokens), endDate,
			nullFloat(m.Volume24h), nullFloat(m.Liquidity), seenAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("failed to upsert market: %w", err)
		}
	}

	if s.maxMarkets > 0 {
		if _, err := tx.Exec(`
			DELETE FROM markets WHERE market_id NOT IN (
				SELECT market_id FROM markets ORDER BY last_seen DESC LIMIT ?
			)`, s.maxMarkets); err != nil {
			return fmt.Errorf("failed to enforce market cap: %w", err)
		}
	}
	return tx.Commit()
}

// GetMarket returns stored metadata for id.
func (s *Storage) GetMarket(id string) (*models.MarketMeta, error) {
	row := s.db.QueryRow(`
		SELECT market_id, slug, question, token_ids, end_date, volume_24hr, liquidity
		FROM markets WHERE market_id = ?`, id)

	var m models.MarketMeta
	var slug, question sql.NullString
	var tokens string
	var endDate sql.NullInt64
	var vol, liq sql.NullFloat64
	err := row.Scan(&m.MarketID, &slug, &question, &tokens, &endDate, &vol, &liq)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("market not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if err := json.Unmarshal([]byte(tokens), &m.ClobTokenIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token ids: %w", err)
	}
	m.Slug, m.Question = slug.String, question.String
	if endDate.Valid {
		m.EndDate = time.Unix(0, endDate.Int64)
	}
	m.Volume24h, m.Liquidity = floatPtr(vol), floatPtr(liq)
	m.Active = true
	return &m, nil
}

// CountMarkets returns the number of stored markets.
func (s *Storage) CountMarkets() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count markets: %w", err)
	}
	return n, nil
}

func (s *Storage) SaveSnapshot(snap models.Snapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots
			(ts, market_id, slug, token_id, mid, spread, depth5, depth_bid, depth_ask,
			 vol_24h, liquidity, restricted, ok_book)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		snap.Timestamp.UnixNano(), snap.MarketID, snap.Slug, snap.TokenID,
		nullFloat(snap.Mid), nullFloat(snap.Spread), nullFloat(snap.Depth5),
		nullFloat(snap.DepthBid), nullFloat(snap.DepthAsk),
		nullFloat(snap.Vol24h), nullFloat(snap.Liquidity),
		boolToInt(snap.Restricted), boolToInt(snap.OKBook),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns the latest limit snapshots of a market, newest first.
func (s *Storage) RecentSnapshots(marketID string, limit int) ([]models.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT ts, market_id, slug, token_id, mid, spread, depth5, depth_bid, depth_ask,
		       vol_24h, liquidity, restricted, ok_book
		FROM snapshots WHERE market_id = ? ORDER BY ts DESC, id DESC LIMIT ?`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		var ts int64
		var slug, token sql.NullString
		var mid, spread, depth, bid, ask, vol, liq sql.NullFloat64
		var restricted, okBook int
		if err := rows.Scan(&ts, &snap.MarketID, &slug, &token, &mid, &spread, &depth,
			&bid, &ask, &vol, &liq, &restricted, &okBook); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Timestamp = time.Unix(0, ts)
		snap.Slug, snap.TokenID = slug.String, token.String
		snap.Mid, snap.Spread, snap.Depth5 = floatPtr(mid), floatPtr(spread), floatPtr(depth)
		snap.DepthBid, snap.DepthAsk = floatPtr(bid), floatPtr(ask)
		snap.Vol24h, snap.Liquidity = floatPtr(vol), floatPtr(liq)
		snap.Restricted, snap.OKBook = restricted != 0, okBook != 0
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Storage) SaveBotScore(ts time.Time, marketID string, score models.BotScore) error {
	_, err := s.db.Exec(`
		INSERT INTO bot_scores (ts, market_id, score, regime) VALUES (?,?,?,?)`,
		ts.UnixNano(), marketID, score.Score, string(score.Regime),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bot score: %w", err)
	}
	return nil
}

// RegimeCounts tallies stored regime classifications since the given time.
func (s *Storage) RegimeCounts(since time.Time) (map[models.Regime]int, error) {
	rows, err := s.db.Query(`
		SELECT regime, COUNT(*) FROM bot_scores WHERE ts >= ? GROUP BY regime`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query regimes: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Regime]int)
	for rows.Next() {
		var regime string
		var n int
		if err := rows.Scan(&regime, &n); err != nil {
			return nil, fmt.Errorf("failed to scan regime count: %w", err)
		}
		out[models.Regime(regime)] = n
	}
	return out, rows.Err()
}

func (s *Storage) SaveSignal(sig models.SignalRecord) error {
	var dir sql.NullString
	if sig.Direction != nil {
		dir = sql.NullString{String: string(*sig.Direction), Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO signals
			(id, ts, market_id, slug, token_id, strategy, kind, direction, strength,
			 mid, regime, bot_score, details)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sig.ID, sig.Timestamp.UnixNano(), sig.MarketID, sig.Slug, sig.TokenID,
		string(sig.Strategy), sig.Kind, dir, sig.Strength,
		nullFloat(sig.Mid), string(sig.Regime), sig.BotScore, sig.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// RecentSignals returns the latest limit signals, newest first. An empty
// strategy matches all strategies.
func (s *Storage) RecentSignals(strategy models.Strategy, limit int) ([]models.SignalRecord, error) {
	query := `
		SELECT id, ts, market_id, slug, token_id, strategy, kind, direction, strength,
		       mid, regime, bot_score, details
		FROM signals`
	args := []any{}
	if strategy != "" {
		query += ` WHERE strategy = ?`
		args = append(args, string(strategy))
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var out []models.SignalRecord
	for rows.Next() {
		var sig models.SignalRecord
		var ts int64
		var slug, token, dir sql.NullString
		var strategy, regime string
		var mid sql.NullFloat64
		if err := rows.Scan(&sig.ID, &ts, &sig.MarketID, &slug, &token, &strategy, &sig.Kind,
			&dir, &sig.Strength, &mid, &regime, &sig.BotScore, &sig.Details); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sig.Timestamp = time.Unix(0, ts)
		sig.Slug, sig.TokenID = slug.String, token.String
		sig.Strategy, sig.Regime = models.Strategy(strategy), models.Regime(regime)
		sig.Mid = floatPtr(mid)
		if dir.Valid {
			d := models.Direction(dir.String)
			sig.Direction = &d
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// Prune deletes snapshots and bot scores older than before. Signals are kept.
func (s *Storage) Prune(before time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"snapshots", "bot_scores"} {
		res, err := s.db.Exec(`DELETE FROM `+table+` WHERE ts < ?`, before.UnixNano())
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// SaveBaselines checkpoints the rolling windows of every instrument.
func (s *Storage) SaveBaselines(cps map[string]baseline.Checkpoint) error {
	now := time.Now().UnixNano()
	return s.inTx(func(tx *sql.Tx) error {
		for id, cp := range cps {
			windows, err := json.Marshal(cp)
			if err != nil {
				return fmt.Errorf("failed to marshal baseline: %w", err)
			}
			if _, err := tx.Exec(`
				INSERT OR REPLACE INTO baseline_state (market_id, windows, updated_at)
				VALUES (?,?,?)`, id, string(windows), now); err != nil {
				return fmt.Errorf("failed to save baseline: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) LoadBaselines() (map[string]baseline.Checkpoint, error) {
	rows, err := s.db.Query(`SELECT market_id, windows FROM baseline_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[string]baseline.Checkpoint)
	for rows.Next() {
		var id, windows string
		if err := rows.Scan(&id, &windows); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		var cp baseline.Checkpoint
		if err := json.Unmarshal([]byte(windows), &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal baseline for %s: %w", id, err)
		}
		out[id] = cp
	}
	return out, rows.Err()
}

func (s *Storage) SaveCascadeStates(states map[string]models.CascadeState) error {
	now := time.Now().UnixNano()
	return s.inTx(func(tx *sql.Tx) error {
		for id, st := range states {
			if _, err := tx.Exec(`
				INSERT OR REPLACE INTO cascade_state
					(market_id, last_mid, last_spread, last_depth5, updated_at)
				VALUES (?,?,?,?,?)`,
				id, nullFloat(st.LastMid), nullFloat(st.LastSpread), nullFloat(st.LastDepth5), now,
			); err != nil {
				return fmt.Errorf("failed to save cascade state: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) LoadCascadeStates() (map[string]models.CascadeState, error) {
	rows, err := s.db.Query(`SELECT market_id, last_mid, last_spread, last_depth5 FROM cascade_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cascade states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.CascadeState)
	for rows.Next() {
		var id string
		var mid, spread, depth sql.NullFloat64
		if err := rows.Scan(&id, &mid, &spread, &depth); err != nil {
			return nil, fmt.Errorf("failed to scan cascade state: %w", err)
		}
		out[id] = models.CascadeState{
			LastMid:    floatPtr(mid),
			LastSpread: floatPtr(spread),
			LastDepth5: floatPtr(depth),
		}
	}
	return out, rows.Err()
}

func (s *Storage) SavePriors(priors map[string]models.PriorObservation) error {
	now := time.Now().UnixNano()
	return s.inTx(func(tx *sql.Tx) error {
		for id, p := range priors {
			if _, err := tx.Exec(`
				INSERT OR REPLACE INTO prior_obs (market_id, mid, spread, depth5, vol_24h, updated_at)
				VALUES (?,?,?,?,?,?)`,
				id, nullFloat(p.Mid), nullFloat(p.Spread), nullFloat(p.Depth5), nullFloat(p.Vol24h), now,
			); err != nil {
				return fmt.Errorf("failed to save prior observation: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) LoadPriors() (map[string]models.PriorObservation, error) {
	rows, err := s.db.Query(`SELECT market_id, mid, spread, depth5, vol_24h FROM prior_obs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior observations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.PriorObservation)
	for rows.Next() {
		var id string
		var mid, spread, depth, vol sql.NullFloat64
		if err := rows.Scan(&id, &mid, &spread, &depth, &vol); err != nil {
			return nil, fmt.Errorf("failed to scan prior observation: %w", err)
		}
		out[id] = models.PriorObservation{
			Mid:    floatPtr(mid),
			Spread: floatPtr(spread),
			Depth5: floatPtr(depth),
			Vol24h: floatPtr(vol),
		}
	}
	return out, rows.Err()
}

func (s *Storage) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
