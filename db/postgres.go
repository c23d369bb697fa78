package db

import (
	"context"
	"fmt"
	"time"

	"tradeSimServer/config"
	"tradeSimServer/game"
	"tradeSimServer/state"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeromicro/go-zero/core/logx"
)

var (
	// PostgresPool is the global PostgreSQL connection pool
	PostgresPool *pgxpool.Pool
)

// SessionResultRecord is one player's final line in an ended session
type SessionResultRecord struct {
	SessionID   string    `json:"sessionId"`
	RoomID      string    `json:"roomId"`
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Profit      float64   `json:"profit"` // scaled by the session's point value
	NumTrades   int       `json:"numTrades"`
	NumWins     int       `json:"numWins"`
	Liquidated  bool      `json:"liquidated"`
	EndedAt     time.Time `json:"endedAt"`
}

// InitPostgres initializes the PostgreSQL connection pool
func InitPostgres(databaseURL string) error {
	logx.Info("🔌 Connecting to PostgreSQL...")

	if databaseURL == "" {
		return fmt.Errorf("postgres DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime

	PostgresPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := PostgresPool.Ping(ctx); err != nil {
		PostgresPool.Close()
		PostgresPool = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logx.Info("✅ PostgreSQL connected successfully")

	if err := InitSchema(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// ClosePostgres closes the PostgreSQL connection pool
func ClosePostgres() {
	if PostgresPool != nil {
		logx.Info("🔌 Closing PostgreSQL connection...")
		PostgresPool.Close()
		PostgresPool = nil
	}
}

// InitSchema creates the database tables if they don't exist
func InitSchema(ctx context.Context) error {
	logx.Info("📋 Initializing database schema...")

	sessionResultsSchema := `
	CREATE TABLE IF NOT EXISTS session_results (
		id SERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		player_id TEXT NOT NULL,
		display_name TEXT NOT NULL,
		profit DOUBLE PRECISION NOT NULL,
		num_trades INTEGER NOT NULL DEFAULT 0,
		num_wins INTEGER NOT NULL DEFAULT 0,
		liquidated BOOLEAN NOT NULL DEFAULT FALSE,
		ended_at TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE(session_id, player_id)
	);

	CREATE INDEX IF NOT EXISTS idx_session_results_ended_at ON session_results(ended_at DESC);
	CREATE INDEX IF NOT EXISTS idx_session_results_player ON session_results(player_id);
	`

	if _, err := PostgresPool.Exec(ctx, sessionResultsSchema); err != nil {
		return fmt.Errorf("failed to create session_results table: %w", err)
	}

	playerPnLSchema := `
	CREATE TABLE IF NOT EXISTS player_pnl (
		player_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		sessions INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_player_pnl_amount ON player_pnl(amount DESC);
	`

	if _, err := PostgresPool.Exec(ctx, playerPnLSchema); err != nil {
		return fmt.Errorf("failed to create player_pnl table: %w", err)
	}

	logx.Info("✅ Database schema initialized")
	return nil
}

/* =========================
   SESSION ARCHIVE
========================= */

// ResultsFromSnapshot turns an ended session into one record per player,
// with profit scaled by the session's point value.
func ResultsFromSnapshot(snap state.SessionSnapshot, endedAt time.Time) []*SessionResultRecord {
	records := make([]*SessionResultRecord, 0, len(snap.Players))
	for _, p := range snap.Players {
		records = append(records, &SessionResultRecord{
			SessionID:   snap.ID,
			RoomID:      snap.RoomID,
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Profit:      game.RoundToDecimal(game.Scale(p.Profit, snap.Settings.PointValue), config.MoneyPrecision),
			NumTrades:   p.NumTrades,
			NumWins:     p.NumWinningRealizations,
			Liquidated:  p.Liquidated,
			EndedAt:     endedAt,
		})
	}
	return records
}

// ArchiveSession stores every player's result and folds their profit into
// the all-time table, in one transaction.
func ArchiveSession(ctx context.Context, snap state.SessionSnapshot, endedAt time.Time) error {
	if PostgresPool == nil {
		logx.Info("⚠️ PostgreSQL not initialized, skipping session archive")
		return nil
	}

	records := ResultsFromSnapshot(snap, endedAt)
	if len(records) == 0 {
		return nil
	}

	tx, err := PostgresPool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO session_results
			(session_id, room_id, player_id, display_name, profit, num_trades, num_wins, liquidated, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (session_id, player_id) DO NOTHING
		`, r.SessionID, r.RoomID, r.PlayerID, r.DisplayName, r.Profit, r.NumTrades, r.NumWins, r.Liquidated, r.EndedAt)
		batch.Queue(addPlayerPnLQuery, r.PlayerID, r.DisplayName, r.Profit)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store session results: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session archive: %w", err)
	}

	logx.Infof("✅ Archived session %s - Room: %s, Players: %d", snap.ID, snap.RoomID, len(records))
	return nil
}

// GetRecentSessionResults returns the newest results, optionally for one player
func GetRecentSessionResults(ctx context.Context, playerID string, limit int) ([]*SessionResultRecord, error) {
	if PostgresPool == nil {
		return []*SessionResultRecord{}, nil
	}

	query := `
		SELECT session_id, room_id, player_id, display_name, profit, num_trades, num_wins, liquidated, ended_at
		FROM session_results
		WHERE $1 = '' OR player_id = $1
		ORDER BY ended_at DESC, id DESC
		LIMIT $2
	`

	rows, err := PostgresPool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session results: %w", err)
	}
	defer rows.Close()

	records := []*SessionResultRecord{}
	for rows.Next() {
		var record SessionResultRecord
		if err := rows.Scan(
			&record.SessionID,
			&record.RoomID,
			&record.PlayerID,
			&record.DisplayName,
			&record.Profit,
			&record.NumTrades,
			&record.NumWins,
			&record.Liquidated,
			&record.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheckPostgres performs a PostgreSQL health check
func HealthCheckPostgres(ctx context.Context) error {
	if PostgresPool == nil {
		return fmt.Errorf("PostgreSQL connection pool not initialized")
	}
	return PostgresPool.Ping(ctx)
}

/* =========================
   PLAYER PNL
========================= */

// PlayerPnLRecord represents a player's all-time scaled profit
type PlayerPnLRecord struct {
	PlayerID    string  `json:"playerId"`
	DisplayName string  `json:"displayName"`
	Amount      float64 `json:"amount"`
	Sessions    int     `json:"sessions"`
	Rank        int     `json:"rank,omitempty"`
}

const addPlayerPnLQuery = `
	INSERT INTO player_pnl (player_id, display_name, amount, sessions, updated_at)
	VALUES ($1, $2, $3, 1, NOW())
	ON CONFLICT (player_id) DO UPDATE
	SET amount = player_pnl.amount + $3,
	    display_name = $2,
	    sessions = player_pnl.sessions + 1,
	    updated_at = NOW()
`

// AddPlayerPnL adds a session's profit (negative for losses) to a player's total
func AddPlayerPnL(ctx context.Context, playerID, displayName string, amount float64) error {
	if PostgresPool == nil {
		logx.Info("⚠️ PostgreSQL not initialized, skipping PnL update")
		return nil
	}

	_, err := PostgresPool.Exec(ctx, addPlayerPnLQuery, playerID, displayName, amount)
	if err != nil {
		return fmt.Errorf("failed to add player PnL: %w", err)
	}

	logx.Infof("📈 Added %.2f to player %s PnL", amount, playerID)
	return nil
}

// GetPlayerPnLLeaderboard returns top N players sorted by PnL descending
func GetPlayerPnLLeaderboard(ctx context.Context, limit int) ([]*PlayerPnLRecord, error) {
	if PostgresPool == nil {
		return []*PlayerPnLRecord{}, nil
	}

	query := `
		SELECT player_id, display_name, amount, sessions,
		       ROW_NUMBER() OVER (ORDER BY amount DESC) as rank
		FROM player_pnl
		ORDER BY amount DESC
		LIMIT $1
	`

	rows, err := PostgresPool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	records := []*PlayerPnLRecord{}
	for rows.Next() {
		var record PlayerPnLRecord
		if err := rows.Scan(&record.PlayerID, &record.DisplayName, &record.Amount, &record.Sessions, &record.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// GetPlayerPnLRank returns a specific player's rank and PnL
func GetPlayerPnLRank(ctx context.Context, playerID string) (*PlayerPnLRecord, error) {
	if PostgresPool == nil {
		return nil, nil
	}

	query := `
		SELECT player_id, display_name, amount, sessions, rank FROM (
			SELECT player_id, display_name, amount, sessions,
			       ROW_NUMBER() OVER (ORDER BY amount DESC) as rank
			FROM player_pnl
		) ranked
		WHERE player_id = $1
	`

	var record PlayerPnLRecord
	err := PostgresPool.QueryRow(ctx, query, playerID).Scan(
		&record.PlayerID,
		&record.DisplayName,
		&record.Amount,
		&record.Sessions,
		&record.Rank,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player rank: %w", err)
	}

	return &record, nil
}
