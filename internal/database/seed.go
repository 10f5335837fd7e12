package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var defaultProviders []byte

// ProviderCatalog es el formato del archivo de brokers.
type ProviderCatalog struct {
	Providers []ProviderSeed `yaml:"providers"`
}

type ProviderSeed struct {
	Name           string   `yaml:"name"`
	SupportsAPIKey bool     `yaml:"supports_api_key"`
	AccountTypes   []string `yaml:"account_types"`
}

var validAccountTypes = map[string]bool{"ISA": true, "CISA": true, "SIPP": true, "LISA": true, "GIA": true}

// LoadProviderCatalog lee el catálogo; si path está vacío o no existe usa el embebido.
func LoadProviderCatalog(path string) (ProviderCatalog, error) {
	data := defaultProviders
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = b
		case errors.Is(err, os.ErrNotExist):
			zap.L().Debug("Catálogo de brokers no encontrado, usando el embebido", zap.String("path", path))
		default:
			return ProviderCatalog{}, err
		}
	}

	var catalog ProviderCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return catalog, fmt.Errorf("parsing provider catalog: %w", err)
	}
	for _, p := range catalog.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return catalog, errors.New("provider catalog: provider without name")
		}
		for _, t := range p.AccountTypes {
			if !validAccountTypes[t] {
				return catalog, fmt.Errorf("provider catalog: %s has unknown account type %q", p.Name, t)
			}
		}
	}
	return catalog, nil
}

// SeedProviders inserta o actualiza los brokers del catálogo por nombre.
func SeedProviders(ctx context.Context, db *Database, path string) (int, error) {
	catalog, err := LoadProviderCatalog(path)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	err = db.WithTx(ctx, func(tx *Tx) error {
		for _, p := range catalog.Providers {
			types := strings.Join(p.AccountTypes, ",")
			var id string
			err := tx.QueryRowContext(ctx, `SELECT id FROM broker_providers WHERE name = ?`, p.Name).Scan(&id)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				_, err = tx.ExecContext(ctx, `
					INSERT INTO broker_providers (id, name, supports_api_key, supported_account_types, created_at, updated_at)
					VALUES (?, ?, ?, ?, ?, ?)`,
					uuid.NewString(), p.Name, p.SupportsAPIKey, types, now, now)
			case err == nil:
				_, err = tx.ExecContext(ctx, `
					UPDATE broker_providers SET supports_api_key = ?, supported_account_types = ?, updated_at = ?
					WHERE id = ?`,
					p.SupportsAPIKey, types, now, id)
			}
			if err != nil {
				return fmt.Errorf("seeding provider %s: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(catalog.Providers), nil
}
