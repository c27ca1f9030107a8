package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	CatalogStatic   = "static"
	CatalogPostgres = "postgres"

	DefaultListenAddress    = ":8082"
	DefaultWalletInstallURL = "https://www.coinbase.com/wallet/downloads"
	DefaultAvatarBaseURL    = "https://i.pravatar.cc/150"
)

// Duration decodes TOML strings such as "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	ListenAddress     string   `toml:"ListenAddress"`
	Environment       string   `toml:"Environment"`
	CatalogSource     string   `toml:"CatalogSource"`
	CatalogFile       string   `toml:"CatalogFile"`
	DatabaseURL       string   `toml:"DatabaseURL"`
	RunMigrations     bool     `toml:"RunMigrations"`
	WalletRPC         string   `toml:"WalletRPC"`
	WalletInstallURL  string   `toml:"WalletInstallURL"`
	AvatarBaseURL     string   `toml:"AvatarBaseURL"`
	ApprovalDelay     Duration `toml:"ApprovalDelay"`
	ConfirmationDelay Duration `toml:"ConfirmationDelay"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddress:     DefaultListenAddress,
		Environment:       "dev",
		CatalogSource:     CatalogStatic,
		WalletInstallURL:  DefaultWalletInstallURL,
		AvatarBaseURL:     DefaultAvatarBaseURL,
		ApprovalDelay:     Duration{2 * time.Second},
		ConfirmationDelay: Duration{3 * time.Second},
	}
}

// Load reads the TOML file at path (if non-empty) over the defaults, then
// applies STOREFRONT_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %q", path, undecoded[0].String())
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.CatalogSource = strings.ToLower(strings.TrimSpace(cfg.CatalogSource))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STOREFRONT_LISTEN_ADDRESS":  &c.ListenAddress,
		"STOREFRONT_ENV":             &c.Environment,
		"STOREFRONT_CATALOG_SOURCE":  &c.CatalogSource,
		"STOREFRONT_CATALOG_FILE":    &c.CatalogFile,
		"STOREFRONT_DATABASE_URL":    &c.DatabaseURL,
		"STOREFRONT_WALLET_RPC":      &c.WalletRPC,
		"STOREFRONT_WALLET_INSTALL":  &c.WalletInstallURL,
		"STOREFRONT_AVATAR_BASE_URL": &c.AvatarBaseURL,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup("STOREFRONT_RUN_MIGRATIONS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("STOREFRONT_RUN_MIGRATIONS: %w", err)
		}
		c.RunMigrations = b
	}
	durs := map[string]*Duration{
		"STOREFRONT_APPROVAL_DELAY":     &c.ApprovalDelay,
		"STOREFRONT_CONFIRMATION_DELAY": &c.ConfirmationDelay,
	}
	for key, dst := range durs {
		if v, ok := lookup(key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}

// Validate checks the settings that main relies on.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddress) == "" {
		errs = append(errs, errors.New("ListenAddress is required"))
	}
	switch c.CatalogSource {
	case CatalogStatic:
	case CatalogPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DatabaseURL is required for the postgres catalog"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CatalogSource %q", c.CatalogSource))
	}
	if c.ApprovalDelay.Duration <= 0 || c.ConfirmationDelay.Duration <= 0 {
		errs = append(errs, errors.New("checkout delays must be positive"))
	}
	return errors.Join(errs...)
}
