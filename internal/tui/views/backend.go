package views

import (
	"context"

	"github.com/contato-rede/leads/internal/engine/search"
	"github.com/contato-rede/leads/internal/engine/storage"
	"github.com/contato-rede/leads/internal/model"
)

// Backend is what the views need from the application.
type Backend interface {
	Scan(ctx context.Context, req model.SearchRequest, onProgress func(search.Progress)) search.Result
	LastSearch(ctx context.Context) (*model.SearchConfig, error)
	Leads(ctx context.Context, campaignID string) ([]model.Lead, error)
	DeleteLead(ctx context.Context, id string) (bool, error)
	Runs(ctx context.Context, limit int) ([]model.RunRecord, error)
	Restore(ctx context.Context, path string) (*storage.Backup, error)
	Regions() []string
}

// Navigation messages
type NavigateToHome struct{ Notice string }
type NavigateToSearch struct{ Prefill *model.SearchConfig }
type NavigateToResume struct{}
type NavigateToRestore struct{}
type NavigateToHistory struct{}

// NavigateToLeads opens the lead explorer; an empty CampaignID shows all leads.
type NavigateToLeads struct{ CampaignID string }

// StartScanMsg starts a scan with the progress view.
type StartScanMsg struct{ Request model.SearchRequest }
