package storage

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contato-rede/leads/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func lead(id, campaign, name string, created time.Time) model.Lead {
	return model.Lead{
		ID: id, CampaignID: campaign, Name: name, Phone: "(47) 3333-0000",
		Rating: 4.5, Reviews: 12, Category: "oficina", CreatedAt: created,
	}
}

func TestOpenCreatesDefaultCampaign(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	c, err := s.GetCampaign(ctx, model.DefaultCampaignID)
	require.NoError(t, err)
	assert.Equal(t, "Geral", c.Name)
	assert.Empty(t, c.Locations)

	require.ErrorIs(t, s.DeleteCampaign(ctx, model.DefaultCampaignID), ErrDefaultCampaign)
}

func TestSaveLeadsIsIdempotent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	batch := []model.Lead{
		lead("biz-1", "c1", "Oficina A", now),
		lead("biz-2", "c1", "Oficina B", now.Add(time.Second)),
	}
	n, err := s.SaveLeads(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SaveLeads(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, n, "same campaign rewrite is a no-op")

	count, err := s.CountLeads(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	leads, err := s.ListLeads(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Oficina B", leads[0].Name, "newest first")
	assert.Equal(t, 4.5, leads[0].Rating)
	assert.Equal(t, now.UnixMilli(), leads[1].CreatedAt.UnixMilli())
}

func TestSaveLeadsMovesLeadToNewCampaign(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	n, err := s.SaveLeads(ctx, []model.Lead{lead("biz-p1", "a", "Retífica Norte", now)})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	moved := lead("biz-p1", "b", "Retífica Norte", now.Add(time.Minute))
	moved.Phone = "(47) 3333-9999"
	n, err = s.SaveLeads(ctx, []model.Lead{moved})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inB, err := s.ListLeads(ctx, "b")
	require.NoError(t, err)
	require.Len(t, inB, 1)
	assert.Equal(t, "(47) 3333-9999", inB[0].Phone)

	inA, err := s.ListLeads(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, inA)

	names, err := s.LeadNames(ctx, "b")
	require.NoError(t, err)
	assert.Contains(t, names, "Retífica Norte")
}

func TestNaNRatingStoredAsNull(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	l := lead("biz-nan", "", "Sem Nota", time.Now())
	l.Rating = math.NaN()
	_, err := s.SaveLeads(ctx, []model.Lead{l})
	require.NoError(t, err)

	leads, err := s.ListLeads(ctx, model.DefaultCampaignID)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Zero(t, leads[0].Rating)
	assert.Equal(t, model.DefaultCampaignID, leads[0].CampaignID)
}

func TestLeadNamesAndDeletion(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.SaveLeads(ctx, []model.Lead{
		lead("biz-1", "c1", "Oficina A", now),
		lead("biz-2", "c2", "Oficina B", now),
		lead("biz-3", "", "Oficina C", now),
	})
	require.NoError(t, err)

	names, err := s.LeadNames(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oficina A"}, names)

	names, err = s.LeadNames(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Oficina A", "Oficina B", "Oficina C"}, names)

	ok, err := s.DeleteLead(ctx, "biz-2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeleteLead(ctx, "biz-2")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.ClearLeads(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCampaignLifecycle(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	c := model.Campaign{
		ID: "c1", Name: "Retíficas SC", Niche: "retífica",
		Locations: []string{"Joinville", "Blumenau"}, Goal: 50, MinRating: 4,
		OnlyWithPhone: true, ExcludeKeywords: "peças", Budget: 10,
	}
	require.NoError(t, s.SaveCampaign(ctx, c))

	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.Locations, got.Locations)
	assert.Equal(t, "retífica em Joinville, Blumenau", got.Query())
	assert.False(t, got.UpdatedAt.IsZero())

	c.Goal = 80
	require.NoError(t, s.SaveCampaign(ctx, c))
	got, err = s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 80, got.Goal)

	all, err := s.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.SaveLeads(ctx, []model.Lead{lead("biz-1", "c1", "Oficina A", time.Now())})
	require.NoError(t, err)
	require.NoError(t, s.DeleteCampaign(ctx, "c1"))
	require.ErrorIs(t, s.DeleteCampaign(ctx, "c1"), ErrNotFound)

	_, err = s.GetCampaign(ctx, "c1")
	require.ErrorIs(t, err, ErrNotFound)

	count, err := s.CountLeads(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "leads survive their campaign")
}

func TestSearchConfigRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	cfg, err := s.LoadSearchConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, s.SaveSearchConfig(ctx, model.SearchConfig{Niche: "padaria", Locations: []string{"Curitiba"}, Mode: "single"}))
	require.NoError(t, s.SaveSearchConfig(ctx, model.SearchConfig{Niche: "retífica", Locations: []string{"Joinville"}, DeepSearch: true}))

	cfg, err = s.LoadSearchConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "retífica", cfg.Niche)
	assert.True(t, cfg.DeepSearch)
}

func TestRunsAndDailySpend(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	runs := []model.RunRecord{
		{ID: "r1", StartedAt: now.Add(-48 * time.Hour), FinishedAt: now.Add(-47 * time.Hour), State: "GOAL_REACHED", Spend: 5},
		{ID: "r2", StartedAt: now.Add(-time.Hour), FinishedAt: now, State: "EXHAUSTED", Spend: 1.25, Found: 10},
		{ID: "r3", StartedAt: now.Add(-time.Minute), FinishedAt: now, State: "ABORTED", Spend: 0.5},
	}
	for _, r := range runs {
		require.NoError(t, s.SaveRun(ctx, r))
	}

	spend, err := s.SpendSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 1.75, spend, 1e-9)

	got, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r3", got[0].ID)
	assert.Equal(t, 10, got[1].Found)
}

func TestBackupRoundTrip(t *testing.T) {
	src := openTemp(t)
	ctx := context.Background()

	require.NoError(t, src.SaveCampaign(ctx, model.Campaign{ID: "c1", Name: "Padarias", Niche: "padaria", Locations: []string{"Curitiba"}}))
	_, err := src.SaveLeads(ctx, []model.Lead{
		lead("biz-1", "c1", "Padaria A", time.Now()),
		lead("biz-2", "", "Padaria B", time.Now()),
	})
	require.NoError(t, err)
	require.NoError(t, src.SaveSearchConfig(ctx, model.SearchConfig{Niche: "padaria"}))

	var buf bytes.Buffer
	b, err := src.ExportBackup(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Version)
	assert.Len(t, b.Leads, 2)

	dst := openTemp(t)
	require.NoError(t, dst.SaveCampaign(ctx, model.Campaign{ID: "stale", Name: "Old"}))
	_, err = dst.SaveLeads(ctx, []model.Lead{lead("biz-9", "stale", "Old Lead", time.Now())})
	require.NoError(t, err)

	_, err = dst.ImportBackup(ctx, &buf)
	require.NoError(t, err)

	campaigns, err := dst.ListCampaigns(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"c1", model.DefaultCampaignID}, ids)

	n, err := dst.CountLeads(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cfg, err := dst.LoadSearchConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "padaria", cfg.Niche)
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	s := openTemp(t)
	_, err := s.ImportBackup(context.Background(), bytes.NewBufferString(`{"version":2}`))
	require.Error(t, err)
}
