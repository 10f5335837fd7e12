package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/uuid"
)

const searchLimit = 20

type SecurityRepository struct {
	db *database.Database
}

func NewSecurityRepository(db *database.Database) *SecurityRepository {
	return &SecurityRepository{db: db}
}

var SecurityResource = Resource{
	Columns: map[string]Column{
		"symbol":    {Name: "symbol", Kind: KindText},
		"name":      {Name: "name", Kind: KindText},
		"exchange":  {Name: "exchange", Kind: KindText},
		"country":   {Name: "country", Kind: KindText},
		"currency":  {Name: "currency", Kind: KindText},
		"type":      {Name: "security_type", Kind: KindText},
		"isin":      {Name: "isin", Kind: KindText},
		"createdAt": {Name: "created_at", Kind: KindTime},
		"updatedAt": {Name: "updated_at", Kind: KindTime},
	},
	TextFields:  []string{"symbol", "name", "isin"},
	DefaultSort: SortParam{Field: "symbol"},
}

const securityColumns = `id, symbol, name, exchange, country, currency, security_type, isin, cusip, figi, created_at, updated_at`

const securityColumnsPrefixed = `s.id, s.symbol, s.name, s.exchange, s.country, s.currency, s.security_type,
	s.isin, s.cusip, s.figi, s.created_at, s.updated_at`

func securityDest(s *models.Security) []any {
	return []any{&s.ID, &s.Symbol, &s.Name, &s.Exchange, &s.Country, &s.Currency, &s.Type,
		&s.ISIN, &s.CUSIP, &s.FIGI, &s.CreatedAt, &s.UpdatedAt}
}

func scanSecurity(s scanner) (*models.Security, error) {
	sec := &models.Security{}
	err := s.Scan(securityDest(sec)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sec, nil
}

func (r *SecurityRepository) query(ctx context.Context, query string, args ...any) ([]models.Security, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Security{}
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sec)
	}
	return out, rows.Err()
}

func (r *SecurityRepository) List(ctx context.Context, q ListQuery) ([]models.Security, error) {
	conds, args, suffix, err := SecurityResource.Build(q)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, `SELECT `+securityColumns+` FROM securities`+where(nil, conds)+suffix, args...)
}

func (r *SecurityRepository) Get(ctx context.Context, id string) (*models.Security, error) {
	return scanSecurity(r.db.QueryRowContext(ctx, `SELECT `+securityColumns+` FROM securities WHERE id = ?`, id))
}

func (r *SecurityRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Security, error) {
	return scanSecurity(r.db.QueryRowContext(ctx,
		`SELECT `+securityColumns+` FROM securities WHERE UPPER(symbol) = UPPER(?) ORDER BY created_at LIMIT 1`, symbol))
}

// Search busca en la caché por símbolo, nombre o ISIN; el símbolo exacto va primero.
func (r *SecurityRepository) Search(ctx context.Context, term string) ([]models.Security, error) {
	term = strings.ToUpper(strings.TrimSpace(term))
	like := "%" + term + "%"
	return r.query(ctx, `
		SELECT `+securityColumns+` FROM securities
		WHERE UPPER(symbol) LIKE ? OR UPPER(name) LIKE ? OR UPPER(COALESCE(isin, '')) LIKE ?
		ORDER BY CASE WHEN UPPER(symbol) = ? THEN 0 ELSE 1 END, symbol
		LIMIT ?`, like, like, like, term, searchLimit)
}

// CreateOrFind devuelve el valor existente con el mismo símbolo o lo crea.
func (r *SecurityRepository) CreateOrFind(ctx context.Context, sec *models.Security) (*models.Security, bool, error) {
	existing, err := r.GetBySymbol(ctx, sec.Symbol)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	ts := now()
	sec.ID = uuid.New().String()
	sec.CreatedAt, sec.UpdatedAt = ts, ts
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO securities (`+securityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sec.ID, sec.Symbol, sec.Name, sec.Exchange, sec.Country, sec.Currency, sec.Type,
		sec.ISIN, sec.CUSIP, sec.FIGI, sec.CreatedAt, sec.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	return sec, true, nil
}

func (r *SecurityRepository) Update(ctx context.Context, sec *models.Security) error {
	sec.UpdatedAt = now()
	return affected(r.db.ExecContext(ctx, `
		UPDATE securities
		SET symbol = ?, name = ?, exchange = ?, country = ?, currency = ?, security_type = ?,
			isin = ?, cusip = ?, figi = ?, updated_at = ?
		WHERE id = ?`,
		sec.Symbol, sec.Name, sec.Exchange, sec.Country, sec.Currency, sec.Type,
		sec.ISIN, sec.CUSIP, sec.FIGI, sec.UpdatedAt, sec.ID))
}

func (r *SecurityRepository) Delete(ctx context.Context, id string) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM securities WHERE id = ?`, id))
}
