// Package config loads settings from an optional YAML file, a .env file and
// CASHIER_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the tool.
type Config struct {
	Database string        `yaml:"database"`
	Cashier  CashierConfig `yaml:"cashier"`
	Admin    AdminConfig   `yaml:"admin"`
	Upload   UploadConfig  `yaml:"upload"`
	Removal  RemovalConfig `yaml:"removal"`

	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

type CashierConfig struct {
	Site              string   `yaml:"site"`
	LoginPath         string   `yaml:"login_path"`
	UserInfoPath      string   `yaml:"user_info_path"`
	PurchasePath      string   `yaml:"purchase_path"`
	InvalidPhoneCodes []string `yaml:"invalid_phone_codes"`
}

type AdminConfig struct {
	Site        string `yaml:"site"`
	LoginURL    string `yaml:"login_url"`
	TokenPath   string `yaml:"token_path"`
	CompanyPath string `yaml:"company_path"`
	RemovePath  string `yaml:"remove_path"`
}

type UploadConfig struct {
	Workers int    `yaml:"workers"`
	Amount  string `yaml:"amount"`
}

type RemovalConfig struct {
	// Workers stays small: the admin service does not handle parallel removals.
	Workers int `yaml:"workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: "phones.db",
		Cashier: CashierConfig{
			Site:              "https://udsgame.com/v1/cashier/",
			LoginPath:         "auth",
			UserInfoPath:      "shared-action",
			PurchasePath:      "operations/phone-purchase",
			InvalidPhoneCodes: []string{"invalidPhone", "invalidPhoneNumber"},
		},
		Admin: AdminConfig{
			Site:        "https://api.udsgame.com/admin/",
			LoginURL:    "https://login.udsgame.com/login?from=game",
			TokenPath:   "auth/sso",
			CompanyPath: "companies/current",
			RemovePath:  "companies/%d/operations/%d",
		},
		Upload: UploadConfig{
			Workers: 5,
			Amount:  "0.01",
		},
		Removal: RemovalConfig{
			Workers: 2,
		},
		HTTPTimeout:      30 * time.Second,
		ProgressInterval: time.Second,
	}
}

// Load builds the configuration. path names a YAML file; an empty path or a
// missing file leaves the defaults in place. A .env file in the working
// directory is loaded if present, then CASHIER_* variables override.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Database = getEnv("CASHIER_DB", c.Database)
	c.Cashier.Site = getEnv("CASHIER_SITE", c.Cashier.Site)
	c.Admin.Site = getEnv("CASHIER_ADMIN_SITE", c.Admin.Site)
	c.Admin.LoginURL = getEnv("CASHIER_ADMIN_LOGIN_URL", c.Admin.LoginURL)
	c.Upload.Amount = getEnv("CASHIER_AMOUNT", c.Upload.Amount)
	if codes := os.Getenv("CASHIER_INVALID_PHONE_CODES"); codes != "" {
		c.Cashier.InvalidPhoneCodes = strings.Split(codes, ",")
	}

	var err error
	if c.Upload.Workers, err = getIntEnv("CASHIER_UPLOAD_WORKERS", c.Upload.Workers); err != nil {
		return err
	}
	if c.Removal.Workers, err = getIntEnv("CASHIER_REMOVAL_WORKERS", c.Removal.Workers); err != nil {
		return err
	}
	if c.HTTPTimeout, err = getDurationEnv("CASHIER_HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	if c.ProgressInterval, err = getDurationEnv("CASHIER_PROGRESS_INTERVAL", c.ProgressInterval); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the drivers cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Database == "":
		return errors.New("config: database path is empty")
	case c.Cashier.Site == "" || c.Admin.Site == "" || c.Admin.LoginURL == "":
		return errors.New("config: cashier site, admin site and admin login url are required")
	case c.Upload.Workers <= 0:
		return fmt.Errorf("config: upload workers must be positive, got %d", c.Upload.Workers)
	case c.Removal.Workers <= 0:
		return fmt.Errorf("config: removal workers must be positive, got %d", c.Removal.Workers)
	case c.Upload.Amount == "":
		return errors.New("config: registration amount is empty")
	case c.ProgressInterval <= 0:
		return fmt.Errorf("config: progress interval must be positive, got %s", c.ProgressInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
