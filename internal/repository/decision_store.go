package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/domain/repository"
)

// ClickHouseDecisionStore implements DecisionStore on ClickHouse. Decisions and
// outcomes are append-only; weight snapshots are versioned rows.
type ClickHouseDecisionStore struct {
	db       *sql.DB
	database string
}

// NewClickHouseDecisionStore creates the ClickHouse persistence gateway.
func NewClickHouseDecisionStore(db *sql.DB, database string) repository.DecisionStore {
	return &ClickHouseDecisionStore{db: db, database: database}
}

func (s *ClickHouseDecisionStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.decisions (
			id String,
			asset_id String,
			action String,
			score Float64,
			threshold Float64,
			auto_trading UInt8,
			kind_shares String,
			ts DateTime64(3)
		) ENGINE = MergeTree() ORDER BY (asset_id, ts)`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.outcomes (
			decision_id String,
			realized_return Float64,
			evaluated_at DateTime64(3)
		) ENGINE = MergeTree() ORDER BY evaluated_at`, s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.weight_snapshots (
			version UInt64,
			weights String,
			updated_at DateTime64(3)
		) ENGINE = MergeTree() ORDER BY version`, s.database),
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseDecisionStore) AppendDecision(ctx context.Context, d *models.Decision) error {
	shares, err := json.Marshal(d.KindShares)
	if err != nil {
		return fmt.Errorf("encode kind shares: %w", err)
	}
	auto := uint8(0)
	if d.AutoTradingEnabled {
		auto = 1
	}
	q := fmt.Sprintf("INSERT INTO %s.decisions (id, asset_id, action, score, threshold, auto_trading, kind_shares, ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.database)
	_, err = s.db.ExecContext(ctx, q,
		d.ID,
		d.AssetID,
		string(d.Action),
		d.Score,
		d.ThresholdUsed,
		auto,
		string(shares),
		d.Timestamp,
	)
	return err
}

func (s *ClickHouseDecisionStore) AppendOutcome(ctx context.Context, o *models.Outcome) error {
	q := fmt.Sprintf("INSERT INTO %s.outcomes (decision_id, realized_return, evaluated_at) VALUES (?, ?, ?)", s.database)
	_, err := s.db.ExecContext(ctx, q, o.DecisionID, o.RealizedReturn, o.EvaluatedAt)
	return err
}

func (s *ClickHouseDecisionStore) RecentOutcomes(ctx context.Context, since time.Time, limit int) ([]repository.AttributedOutcome, error) {
	q := fmt.Sprintf(`SELECT o.decision_id, o.realized_return, o.evaluated_at, d.action, d.kind_shares
		FROM %s.outcomes AS o
		INNER JOIN %s.decisions AS d ON d.id = o.decision_id
		WHERE o.evaluated_at >= ?
		ORDER BY o.evaluated_at DESC
		LIMIT ?`, s.database, s.database)
	rows, err := s.db.QueryContext(ctx, q, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.AttributedOutcome
	for rows.Next() {
		var (
			ao     repository.AttributedOutcome
			action string
			shares string
		)
		if err := rows.Scan(&ao.Outcome.DecisionID, &ao.Outcome.RealizedReturn, &ao.Outcome.EvaluatedAt, &action, &shares); err != nil {
			return nil, err
		}
		ao.Action = models.Action(action)
		if shares != "" {
			if err := json.Unmarshal([]byte(shares), &ao.KindShares); err != nil {
				return nil, fmt.Errorf("decode kind shares: %w", err)
			}
		}
		out = append(out, ao)
	}
	return out, rows.Err()
}

func (s *ClickHouseDecisionStore) SaveWeights(ctx context.Context, w *models.WeightVector) error {
	enc, err := json.Marshal(w.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s.weight_snapshots (version, weights, updated_at) VALUES (?, ?, ?)", s.database)
	_, err = s.db.ExecContext(ctx, q, w.Version, string(enc), w.UpdatedAt)
	return err
}

func (s *ClickHouseDecisionStore) LoadWeights(ctx context.Context) (*models.WeightVector, error) {
	q := fmt.Sprintf("SELECT version, weights, updated_at FROM %s.weight_snapshots ORDER BY version DESC LIMIT 1", s.database)
	row := s.db.QueryRowContext(ctx, q)

	var (
		w   models.WeightVector
		enc string
	)
	if err := row.Scan(&w.Version, &enc, &w.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(enc), &w.Weights); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	return &w, nil
}

func (s *ClickHouseDecisionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseDecisionStore) Close() error {
	return nil // Managed by pkg
}
