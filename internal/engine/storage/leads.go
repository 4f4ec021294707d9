package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/contato-rede/leads/internal/model"
)

var leadColumns = []string{
	"id", "campaign_id", "name", "phone", "address", "website", "rating", "reviews",
	"category", "description", "facebook", "instagram", "created_at",
}

// leadUpsert moves a lead found again by another campaign into that campaign.
// Rows already held by the same campaign are left untouched.
const leadUpsert = `ON CONFLICT(id) DO UPDATE SET
	campaign_id = excluded.campaign_id, name = excluded.name, phone = excluded.phone,
	address = excluded.address, website = excluded.website, rating = excluded.rating,
	reviews = excluded.reviews, category = excluded.category, description = excluded.description,
	facebook = excluded.facebook, instagram = excluded.instagram, created_at = excluded.created_at
WHERE leads.campaign_id IS NOT excluded.campaign_id`

// SaveLeads writes leads in one transaction. A lead id is global, so a lead
// stored under another campaign is moved to the one given here; repeating a
// write within the same campaign is harmless. It returns how many rows were
// inserted or moved.
func (s *Store) SaveLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	written := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, l := range leads {
			query, args, err := insertLead(l).Suffix(leadUpsert).ToSql()
			if err != nil {
				return fmt.Errorf("building insert: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("inserting lead %q: %w", l.Name, err)
			}
			n, _ := res.RowsAffected()
			written += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func insertLead(l model.Lead, options ...string) sq.InsertBuilder {
	var rating sql.NullFloat64
	if !math.IsNaN(l.Rating) {
		rating = sql.NullFloat64{Float64: l.Rating, Valid: true}
	}
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return psql.Insert("leads").Options(options...).Columns(leadColumns...).Values(
		l.ID, l.CampaignID, l.Name, l.Phone, l.Address, l.Website, rating, l.Reviews,
		l.Category, l.Description, l.Facebook, l.Instagram, toMillis(created),
	)
}

// ListLeads returns the leads of a campaign, newest first. An empty campaignID
// lists every lead. Leads stored without a campaign belong to the default one.
func (s *Store) ListLeads(ctx context.Context, campaignID string) ([]model.Lead, error) {
	q := psql.Select(leadColumns...).From("leads").OrderBy("created_at DESC", "rowid DESC")
	q = whereCampaign(q, campaignID)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var (
			l       model.Lead
			rating  sql.NullFloat64
			created int64
		)
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.Name, &l.Phone, &l.Address, &l.Website, &rating,
			&l.Reviews, &l.Category, &l.Description, &l.Facebook, &l.Instagram, &created); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		if l.CampaignID == "" {
			l.CampaignID = model.DefaultCampaignID
		}
		l.Rating = rating.Float64
		l.CreatedAt = fromMillis(created)
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// LeadNames returns the names stored for a campaign, used to seed a run's
// known names. An empty campaignID returns every name.
func (s *Store) LeadNames(ctx context.Context, campaignID string) ([]string, error) {
	q := whereCampaign(psql.Select("DISTINCT name").From("leads"), campaignID)
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) CountLeads(ctx context.Context, campaignID string) (int, error) {
	query, args, err := whereCampaign(psql.Select("COUNT(*)").From("leads"), campaignID).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting leads: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteLead(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query, args, err := psql.Delete("leads").Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("deleting lead: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ClearLeads deletes every lead and returns how many were removed.
func (s *Store) ClearLeads(ctx context.Context) (int, error) {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM leads")
		if err != nil {
			return fmt.Errorf("clearing leads: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return int(n), err
}

func whereCampaign(q sq.SelectBuilder, campaignID string) sq.SelectBuilder {
	switch campaignID {
	case "":
		return q
	case model.DefaultCampaignID:
		return q.Where(sq.Eq{"campaign_id": []string{"", model.DefaultCampaignID}})
	}
	return q.Where(sq.Eq{"campaign_id": campaignID})
}
