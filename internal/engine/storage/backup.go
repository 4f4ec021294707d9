package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/contato-rede/leads/internal/model"
)

const backupVersion = 1

// Backup is the JSON backup format.
type Backup struct {
	Version      int                 `json:"version"`
	ExportedAt   time.Time           `json:"exportedAt"`
	Campaigns    []model.Campaign    `json:"campaigns"`
	Leads        []model.Lead        `json:"leads"`
	SearchConfig *model.SearchConfig `json:"searchConfig,omitempty"`
}

// ExportBackup writes every campaign, lead and the last search configuration as JSON.
func (s *Store) ExportBackup(ctx context.Context, w io.Writer) (*Backup, error) {
	campaigns, err := s.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := s.ListLeads(ctx, "")
	if err != nil {
		return nil, err
	}
	cfg, err := s.LoadSearchConfig(ctx)
	if err != nil {
		return nil, err
	}

	b := &Backup{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		Campaigns:    nonNilCampaigns(campaigns),
		Leads:        nonNilLeads(leads),
		SearchConfig: cfg,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("encoding backup: %w", err)
	}
	return b, nil
}

// ImportBackup replaces campaigns and leads with the content of r and
// restores the search configuration when present. The default campaign is
// recreated if the backup lacks it.
func (s *Store) ImportBackup(ctx context.Context, r io.Reader) (*Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding backup: %w", err)
	}
	if b.Version != backupVersion {
		return nil, fmt.Errorf("unsupported backup version %d", b.Version)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM leads"); err != nil {
			return fmt.Errorf("clearing leads: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM campaigns"); err != nil {
			return fmt.Errorf("clearing campaigns: %w", err)
		}
		for _, c := range b.Campaigns {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			if c.UpdatedAt.IsZero() {
				c.UpdatedAt = time.Now()
			}
			if err := upsertCampaign(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, l := range b.Leads {
			if l.ID == "" {
				l.ID = uuid.NewString()
			}
			query, args, err := insertLead(l, "OR REPLACE").ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("restoring lead %q: %w", l.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.EnsureDefaultCampaign(ctx); err != nil {
		return nil, err
	}
	if b.SearchConfig != nil {
		if err := s.SaveSearchConfig(ctx, *b.SearchConfig); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func nonNilCampaigns(c []model.Campaign) []model.Campaign {
	if c == nil {
		return []model.Campaign{}
	}
	return c
}

func nonNilLeads(l []model.Lead) []model.Lead {
	if l == nil {
		return []model.Lead{}
	}
	return l
}
