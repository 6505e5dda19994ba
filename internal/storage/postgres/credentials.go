package postgres

import (
	"context"

	"chariblock/internal/auth/models"
	id "chariblock/pkg/domain"
)

func (s *Store) CreateCredential(ctx context.Context, c *models.Credential) error {
	query := `
		INSERT INTO credentials (username, password_hash, wallet_address, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query, c.Username, c.PasswordHash, c.WalletAddress.String(), c.CreatedAt)
	if err != nil {
		return translate("create credential", err)
	}
	return nil
}

func (s *Store) FindCredential(ctx context.Context, username string) (*models.Credential, error) {
	query := `
		SELECT username, password_hash, wallet_address, created_at
		FROM credentials
		WHERE username = $1
	`
	var (
		c      models.Credential
		wallet string
	)
	err := s.conn(ctx).QueryRowContext(ctx, query, username).Scan(&c.Username, &c.PasswordHash, &wallet, &c.CreatedAt)
	if err != nil {
		return nil, translate("find credential", err)
	}
	c.WalletAddress = id.WalletAddress(wallet)
	return &c, nil
}
