// Package config loads leadtap settings from a YAML file, an optional
// <name>.local.yaml override, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/contato-rede/leads/internal/engine/cost"
)

const DefaultFile = "leadtap.yaml"

type Config struct {
	API        APIConfig        `yaml:"api"`
	Pricing    cost.Table       `yaml:"pricing"`
	Search     SearchConfig     `yaml:"search"`
	Budget     BudgetConfig     `yaml:"budget"`
	Storage    StorageConfig    `yaml:"storage"`
	Geo        GeoConfig        `yaml:"geo"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Log        LogConfig        `yaml:"log"`
}

type APIConfig struct {
	Key           string        `yaml:"key"`
	BaseURL       string        `yaml:"baseURL"`
	Proxy         string        `yaml:"proxy"`
	Language      string        `yaml:"language"`
	PlainTLS      bool          `yaml:"plainTLS"`
	SearchTimeout time.Duration `yaml:"searchTimeout"`
	DetailTimeout time.Duration `yaml:"detailTimeout"`
}

type SearchConfig struct {
	Connector             string        `yaml:"connector"`
	RadiusMeters          int           `yaml:"radiusMeters"`
	BatchCooldown         time.Duration `yaml:"batchCooldown"`
	TransientCooldown     time.Duration `yaml:"transientCooldown"`
	MaxTransientRetries   int           `yaml:"maxTransientRetries"`
	QuotaBaseCooldown     time.Duration `yaml:"quotaBaseCooldown"`
	QuotaMaxCooldown      time.Duration `yaml:"quotaMaxCooldown"`
	SingleBatchGoal       int           `yaml:"singleBatchGoal"`
	TokenDelay            time.Duration `yaml:"tokenDelay"`
	MaxTokenRetries       int           `yaml:"maxTokenRetries"`
	Concurrency           int           `yaml:"concurrency"`
	WarnOnTokenExhaustion bool          `yaml:"warnOnTokenExhaustion"`
}

type BudgetConfig struct {
	// Daily caps the spend of all runs started on the same day, 0 = no cap.
	Daily float64 `yaml:"daily"`
}

type StorageConfig struct {
	DBPath string `yaml:"db"`
}

type GeoConfig struct {
	// HubsFile replaces the embedded hub list when set.
	HubsFile string `yaml:"hubsFile"`
	// Geocoder is "places" or "nominatim".
	Geocoder     string `yaml:"geocoder"`
	NominatimURL string `yaml:"nominatimURL"`
}

type EnrichmentConfig struct {
	Social        bool          `yaml:"social"`
	SocialTimeout time.Duration `yaml:"socialTimeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:       "https://maps.googleapis.com",
			Language:      "pt-BR",
			SearchTimeout: 15 * time.Second,
			DetailTimeout: 10 * time.Second,
		},
		Pricing: cost.DefaultTable(),
		Search: SearchConfig{
			Connector:           "em",
			BatchCooldown:       3 * time.Second,
			TransientCooldown:   10 * time.Second,
			MaxTransientRetries: 5,
			QuotaBaseCooldown:   30 * time.Second,
			QuotaMaxCooldown:    5 * time.Minute,
			SingleBatchGoal:     10,
			TokenDelay:          3500 * time.Millisecond,
			MaxTokenRetries:     3,
			Concurrency:         5,
		},
		Storage: StorageConfig{DBPath: defaultDBPath()},
		Geo: GeoConfig{
			Geocoder:     "places",
			NominatimURL: "https://nominatim.openstreetmap.org",
		},
		Enrichment: EnrichmentConfig{SocialTimeout: 8 * time.Second},
		Log:        LogConfig{Level: "info"},
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "leadtap.db"
	}
	return filepath.Join(dir, "leadtap", "leads.db")
}

// Load decodes path and then its .local override on top of Default, so only
// keys present in a file change a value, explicit zeros included. Environment
// overrides are applied last. A missing file is not an error. An
// empty path uses LEADTAP_CONFIG or DefaultFile.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("LEADTAP_CONFIG")
	}
	if path == "" {
		path = DefaultFile
	}

	cfg, err := readFiles(path)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFiles(path string) (Config, error) {
	out := Default()
	if err := readYAML(path, &out); err != nil {
		return out, err
	}

	ext := filepath.Ext(path)
	local := strings.TrimSuffix(path, ext) + ".local" + ext
	if err := readYAML(local, &out); err != nil {
		return out, err
	}
	return out, nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	slog.Debug("CONFIG", "file", path)
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup("GOOGLE_PLACES_API_KEY"); ok {
		cfg.API.Key = v
	}
	if v, ok := lookup("LEADTAP_BASE_URL"); ok && v != "" {
		cfg.API.BaseURL = v
	}
	if v, ok := lookup("LEADTAP_PROXY"); ok {
		cfg.API.Proxy = v
	}
	if v, ok := lookup("LEADTAP_DB"); ok && v != "" {
		cfg.Storage.DBPath = v
	}
	if v, ok := lookup("LEADTAP_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup("LEADTAP_DAILY_BUDGET"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("LEADTAP_DAILY_BUDGET: invalid amount %q", v)
		}
		cfg.Budget.Daily = f
	}
	return nil
}

// Validate reports settings a scan cannot run with.
func (c Config) Validate() error {
	var errs []error
	// A relay base URL may inject the credential itself.
	if c.API.Key == "" && c.API.BaseURL == Default().API.BaseURL {
		errs = append(errs, errors.New("api key missing: set GOOGLE_PLACES_API_KEY or api.key"))
	}
	if c.Pricing.Search < 0 || c.Pricing.Detail < 0 {
		errs = append(errs, errors.New("pricing must not be negative"))
	}
	if c.Search.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("search.concurrency must be positive, got %d", c.Search.Concurrency))
	}
	switch c.Geo.Geocoder {
	case "places", "nominatim":
	default:
		errs = append(errs, fmt.Errorf("geo.geocoder must be places or nominatim, got %q", c.Geo.Geocoder))
	}
	return errors.Join(errs...)
}
