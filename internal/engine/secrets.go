package engine

import (
	"context"
	"fmt"
)

// Remote dataset locations need DuckDB-side credentials before read_parquet
// or read_csv can open them. Secrets are scoped by URL prefix so one engine
// can serve locations in different stores.

// CreateS3Secret registers S3 credentials for s3:// locations.
func (e *Engine) CreateS3Secret(ctx context.Context, name, keyID, secret, endpoint, region, urlStyle string) error {
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	stmt := fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE S3,
	KEY_ID %s,
	SECRET %s,
	ENDPOINT %s,
	REGION %s,
	URL_STYLE %s
)`,
		quoteIdent(name),
		quoteLiteral(keyID),
		quoteLiteral(secret),
		quoteLiteral(endpoint),
		quoteLiteral(region),
		quoteLiteral(urlStyle),
	)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create S3 secret %q: %w", name, err)
	}
	return nil
}

// CreateGCSSecret registers a GCS HMAC key pair for gs:// locations.
func (e *Engine) CreateGCSSecret(ctx context.Context, name, keyID, secret string) error {
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	stmt := fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE GCS,
	KEY_ID %s,
	SECRET %s
)`,
		quoteIdent(name),
		quoteLiteral(keyID),
		quoteLiteral(secret),
	)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create GCS secret %q: %w", name, err)
	}
	return nil
}

// CreateAzureSecret registers Azure Blob credentials for az:// locations.
// A connection string wins over an account name/key pair.
func (e *Engine) CreateAzureSecret(ctx context.Context, name, accountName, accountKey, connectionString string) error {
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	var stmt string
	if connectionString != "" {
		stmt = fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE AZURE,
	CONNECTION_STRING %s
)`,
			quoteIdent(name),
			quoteLiteral(connectionString),
		)
	} else {
		stmt = fmt.Sprintf(`CREATE OR REPLACE SECRET %s (
	TYPE AZURE,
	ACCOUNT_NAME %s,
	ACCOUNT_KEY %s
)`,
			quoteIdent(name),
			quoteLiteral(accountName),
			quoteLiteral(accountKey),
		)
	}
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create Azure secret %q: %w", name, err)
	}
	return nil
}

// DropSecret removes a named secret of any type.
func (e *Engine) DropSecret(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	stmt := "DROP SECRET IF EXISTS " + quoteIdent(name)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("drop secret %q: %w", name, err)
	}
	return nil
}
