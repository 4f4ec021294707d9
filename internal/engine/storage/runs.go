package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/contato-rede/leads/internal/model"
)

const lastSearchKey = "lastSearch"

// SaveSearchConfig stores cfg as the last used configuration.
func (s *Store) SaveSearchConfig(ctx context.Context, cfg model.SearchConfig) error {
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding search config: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := psql.Insert("search_config").Options("OR REPLACE").
			Columns("key", "data", "updated_at").
			Values(lastSearchKey, string(data), toMillis(cfg.UpdatedAt)).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("saving search config: %w", err)
		}
		return nil
	})
}

// LoadSearchConfig returns the last used configuration, or nil when none was saved.
func (s *Store) LoadSearchConfig(ctx context.Context) (*model.SearchConfig, error) {
	query, args, err := psql.Select("data").From("search_config").Where(sq.Eq{"key": lastSearchKey}).ToSql()
	if err != nil {
		return nil, err
	}
	var data string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading search config: %w", err)
	}
	var cfg model.SearchConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("decoding search config: %w", err)
	}
	return &cfg, nil
}

var runColumns = []string{"id", "campaign_id", "started_at", "finished_at", "state", "reason", "found", "pages", "spend"}

func (s *Store) SaveRun(ctx context.Context, r model.RunRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := psql.Insert("runs").Options("OR REPLACE").Columns(runColumns...).Values(
			r.ID, r.CampaignID, toMillis(r.StartedAt), toMillis(r.FinishedAt), r.State, r.Reason,
			r.Found, r.Pages, r.Spend,
		).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		return nil
	})
}

// ListRuns returns the most recent runs first, at most limit (0 = all).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	q := psql.Select(runColumns...).From("runs").OrderBy("started_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var (
			r                 model.RunRecord
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.CampaignID, &started, &finished, &r.State, &r.Reason, &r.Found, &r.Pages, &r.Spend); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, r.FinishedAt = fromMillis(started), fromMillis(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SpendSince sums the spend of runs started at or after t.
func (s *Store) SpendSince(ctx context.Context, t time.Time) (float64, error) {
	query, args, err := psql.Select("COALESCE(SUM(spend), 0)").From("runs").
		Where(sq.GtOrEq{"started_at": toMillis(t)}).ToSql()
	if err != nil {
		return 0, err
	}
	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing spend: %w", err)
	}
	return total, nil
}
