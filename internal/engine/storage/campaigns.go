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

// ErrNotFound is returned when a campaign does not exist.
var ErrNotFound = errors.New("not found")

// ErrDefaultCampaign is returned when deleting the default campaign.
var ErrDefaultCampaign = errors.New("the default campaign cannot be deleted")

var campaignColumns = []string{
	"id", "name", "niche", "locations", "goal", "min_rating", "only_with_phone",
	"exclude_keywords", "budget", "updated_at",
}

// EnsureDefaultCampaign creates the default campaign when missing.
func (s *Store) EnsureDefaultCampaign(ctx context.Context) error {
	_, err := s.GetCampaign(ctx, model.DefaultCampaignID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.SaveCampaign(ctx, model.Campaign{ID: model.DefaultCampaignID, Name: "Geral"})
}

// SaveCampaign inserts or replaces a campaign and stamps UpdatedAt.
func (s *Store) SaveCampaign(ctx context.Context, c model.Campaign) error {
	if c.ID == "" {
		return errors.New("campaign id is required")
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertCampaign(ctx, tx, c)
	})
}

func upsertCampaign(ctx context.Context, tx *sql.Tx, c model.Campaign) error {
	locations, err := json.Marshal(nonNil(c.Locations))
	if err != nil {
		return fmt.Errorf("encoding locations: %w", err)
	}
	query, args, err := psql.Insert("campaigns").Options("OR REPLACE").Columns(campaignColumns...).Values(
		c.ID, c.Name, c.Niche, string(locations), c.Goal, c.MinRating, c.OnlyWithPhone,
		c.ExcludeKeywords, c.Budget, toMillis(c.UpdatedAt),
	).ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving campaign %q: %w", c.ID, err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (model.Campaign, error) {
	query, args, err := psql.Select(campaignColumns...).From("campaigns").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Campaign{}, fmt.Errorf("building query: %w", err)
	}
	c, err := scanCampaign(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Campaign{}, fmt.Errorf("campaign %q: %w", id, ErrNotFound)
	}
	return c, err
}

// ListCampaigns returns campaigns, most recently updated first.
func (s *Store) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	query, args, err := psql.Select(campaignColumns...).From("campaigns").OrderBy("updated_at DESC", "name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying campaigns: %w", err)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCampaign removes a campaign. Its leads are kept.
func (s *Store) DeleteCampaign(ctx context.Context, id string) error {
	if id == model.DefaultCampaignID {
		return ErrDefaultCampaign
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := psql.Delete("campaigns").Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("deleting campaign: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("campaign %q: %w", id, ErrNotFound)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(r rowScanner) (model.Campaign, error) {
	var (
		c         model.Campaign
		locations string
		updated   int64
	)
	if err := r.Scan(&c.ID, &c.Name, &c.Niche, &locations, &c.Goal, &c.MinRating, &c.OnlyWithPhone,
		&c.ExcludeKeywords, &c.Budget, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scanning campaign: %w", err)
	}
	if err := json.Unmarshal([]byte(locations), &c.Locations); err != nil {
		return c, fmt.Errorf("decoding locations of %q: %w", c.ID, err)
	}
	c.UpdatedAt = fromMillis(updated)
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
