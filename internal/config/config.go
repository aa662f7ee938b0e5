// Package config loads reconciliation run settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"finrecon/internal/aggregate"
	"finrecon/internal/colmatch"
	"finrecon/internal/compare"
	"finrecon/internal/recon"
)

var (
	ErrInvalidTolerance = errors.New("tolerance must be >= 0")
	ErrInvalidThreshold = errors.New("column_threshold must be within [0,1]")
	ErrDuplicateName    = errors.New("duplicate category or formula name")
	ErrEmptyName        = errors.New("category or formula name is empty")
)

const (
	EnvTolerance = "RECON_TOLERANCE"
	EnvStorePath = "RECON_STORE_PATH"
	EnvSignFlip  = "RECON_SIGN_FLIP"
)

type Config struct {
	Tolerance        float64              `yaml:"tolerance"`
	ColumnThreshold  float64              `yaml:"column_threshold"`
	SignFlipAccounts []string             `yaml:"sign_flip_accounts"`
	GroupColumn      string               `yaml:"group_column"`
	Categories       []aggregate.Category `yaml:"categories"`
	Formulas         []aggregate.Formula  `yaml:"formulas"`
	StorePath        string               `yaml:"store_path"`
}

func Default() Config {
	return Config{Tolerance: compare.DefaultTolerance, ColumnThreshold: colmatch.DefaultThreshold}
}

// Load reads path over the defaults (an empty path keeps them), loads a
// .env file from the working directory when one exists, then applies
// environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads path into the process environment. A missing file is not
// an error; variables already set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides tolerance, store path and sign-flip accounts from RECON_*
// variables that are set and non-blank.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvTolerance)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvTolerance, v, err)
		}
		c.Tolerance = f
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorePath)); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv(EnvSignFlip); strings.TrimSpace(v) != "" {
		c.SignFlipAccounts = nil
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				c.SignFlipAccounts = append(c.SignFlipAccounts, a)
			}
		}
	}
	return nil
}

// Validate returns the first sentinel error the configuration violates.
func (c Config) Validate() error {
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTolerance, c.Tolerance)
	}
	if c.ColumnThreshold < 0 || c.ColumnThreshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, c.ColumnThreshold)
	}
	seen := map[string]bool{}
	check := func(kind, name string) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("%w: %s", ErrEmptyName, kind)
		}
		if seen[name] {
			return fmt.Errorf("%w: %s %q", ErrDuplicateName, kind, name)
		}
		seen[name] = true
		return nil
	}
	for _, cat := range c.Categories {
		if err := check("category", cat.Name); err != nil {
			return err
		}
	}
	for _, f := range c.Formulas {
		if err := check("formula", f.Name); err != nil {
			return err
		}
	}
	return nil
}

// Options maps the configuration onto engine options.
func (c Config) Options() recon.Options {
	return recon.Options{
		Tolerance:       c.Tolerance,
		ColumnThreshold: c.ColumnThreshold,
		SignFlip:        append([]string(nil), c.SignFlipAccounts...),
		Categories:      c.Categories,
		Formulas:        c.Formulas,
		GroupColumn:     c.GroupColumn,
	}
}
