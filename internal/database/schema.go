package database

import (
	"context"
	"fmt"
)

// Tablas en orden de dependencias. Los ids son UUID generados en Go y los
// importes NUMERIC se leen con decimal.Decimal.
var schema = []struct {
	name string
	ddl  string
}{
	{"core_users", `
	CREATE TABLE IF NOT EXISTS core_users (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"user_accounts", `
	CREATE TABLE IF NOT EXISTS user_accounts (
		id TEXT PRIMARY KEY,
		core_user_id TEXT NOT NULL REFERENCES core_users(id) ON DELETE CASCADE,
		email TEXT NOT NULL UNIQUE,
		phone_number TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		is_phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"user_profiles", `
	CREATE TABLE IF NOT EXISTS user_profiles (
		id TEXT PRIMARY KEY,
		user_account_id TEXT NOT NULL REFERENCES user_accounts(id) ON DELETE CASCADE,
		avatar_url TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"password_resets", verificationTable("password_resets")},
	{"email_verifications", verificationTable("email_verifications")},
	{"phone_verifications", verificationTable("phone_verifications")},
	{"password_change_history", `
	CREATE TABLE IF NOT EXISTS password_change_history (
		id TEXT PRIMARY KEY,
		user_account_id TEXT NOT NULL REFERENCES user_accounts(id) ON DELETE CASCADE,
		password_hash TEXT NOT NULL,
		changed_at TIMESTAMP NOT NULL
	)`},
	{"refresh_tokens", `
	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_account_id TEXT NOT NULL REFERENCES user_accounts(id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		family_id TEXT NOT NULL,
		parent_token_hash TEXT,
		device_info TEXT,
		last_used_at TIMESTAMP,
		expires_at TIMESTAMP NOT NULL,
		is_revoked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`},
	{"broker_providers", `
	CREATE TABLE IF NOT EXISTS broker_providers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		supports_api_key BOOLEAN NOT NULL DEFAULT FALSE,
		supported_account_types TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"broker_provider_assets", `
	CREATE TABLE IF NOT EXISTS broker_provider_assets (
		id TEXT PRIMARY KEY,
		asset_type TEXT NOT NULL DEFAULT 'broker',
		name TEXT NOT NULL,
		current_value NUMERIC NOT NULL DEFAULT 0,
		user_account_id TEXT NOT NULL REFERENCES user_accounts(id) ON DELETE CASCADE,
		provider_id TEXT NOT NULL REFERENCES broker_providers(id),
		account_type TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (user_account_id, name)
	)`},
	{"general_assets", `
	CREATE TABLE IF NOT EXISTS general_assets (
		id TEXT PRIMARY KEY,
		asset_type TEXT NOT NULL DEFAULT 'general',
		name TEXT NOT NULL,
		current_value NUMERIC NOT NULL DEFAULT 0,
		user_account_id TEXT NOT NULL REFERENCES user_accounts(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (user_account_id, name)
	)`},
	// asset_id apunta a broker_provider_assets o a general_assets
	{"asset_values", historyTable("asset_values")},
	{"asset_contributions", historyTable("asset_contributions")},
	{"broker_provider_asset_api_key_connections", `
	CREATE TABLE IF NOT EXISTS broker_provider_asset_api_key_connections (
		id TEXT PRIMARY KEY,
		broker_provider_asset_id TEXT NOT NULL UNIQUE REFERENCES broker_provider_assets(id) ON DELETE CASCADE,
		api_key TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"recurring_contributions", `
	CREATE TABLE IF NOT EXISTS recurring_contributions (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES broker_provider_assets(id) ON DELETE CASCADE,
		amount NUMERIC NOT NULL,
		start_date TIMESTAMP NOT NULL,
		contribution_interval TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_processed_date TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"securities", `
	CREATE TABLE IF NOT EXISTS securities (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		name TEXT NOT NULL,
		exchange TEXT,
		country TEXT,
		currency TEXT,
		security_type TEXT,
		isin TEXT,
		cusip TEXT,
		figi TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"broker_provider_asset_securities", `
	CREATE TABLE IF NOT EXISTS broker_provider_asset_securities (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES broker_provider_assets(id) ON DELETE CASCADE,
		security_id TEXT NOT NULL REFERENCES securities(id) ON DELETE CASCADE,
		shares NUMERIC NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (asset_id, security_id)
	)`},
	{"milestones", `
	CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		user_account_id TEXT NOT NULL REFERENCES user_accounts(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		target_value NUMERIC NOT NULL,
		account_type TEXT,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"fire_settings", `
	CREATE TABLE IF NOT EXISTS fire_settings (
		id TEXT PRIMARY KEY,
		user_account_id TEXT NOT NULL UNIQUE REFERENCES user_accounts(id) ON DELETE CASCADE,
		target_retirement_age INTEGER NOT NULL,
		annual_income_goal NUMERIC NOT NULL,
		expected_annual_return NUMERIC NOT NULL,
		safe_withdrawal_rate NUMERIC NOT NULL,
		monthly_investment NUMERIC NOT NULL,
		current_age INTEGER NOT NULL,
		adjust_inflation BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`},
	{"schema_migrations", `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`},
}

func verificationTable(name string) string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		user_account_id TEXT NOT NULL REFERENCES user_accounts(id) ON DELETE CASCADE,
		token TEXT NOT NULL,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TIMESTAMP,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`, name)
}

func historyTable(name string) string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		value NUMERIC NOT NULL,
		recorded_at TIMESTAMP NOT NULL,
		asset_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, name)
}

// CreateSchema crea las tablas que falten.
func CreateSchema(ctx context.Context, db *Database) error {
	for _, table := range schema {
		if _, err := db.ExecContext(ctx, table.ddl); err != nil {
			return fmt.Errorf("creating table %s: %w", table.name, err)
		}
	}
	return nil
}
