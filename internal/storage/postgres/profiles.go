package postgres

import (
	"context"

	"chariblock/internal/profile/models"
	id "chariblock/pkg/domain"
	"chariblock/pkg/platform/sentinel"
)

const profileColumns = `wallet_address, name, email, profile_type, is_verified, created_at, updated_at`

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO user_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		p.WalletAddress.String(), p.Name, p.Email, string(p.Kind), p.Verified, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return translate("create profile", err)
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE user_profiles
		SET name = $2, email = $3, profile_type = $4, is_verified = $5, updated_at = $6
		WHERE wallet_address = $1
	`
	result, err := s.conn(ctx).ExecContext(ctx, query,
		p.WalletAddress.String(), p.Name, p.Email, string(p.Kind), p.Verified, p.UpdatedAt)
	if err != nil {
		return translate("update profile", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return translate("update profile rows affected", err)
	}
	if rows == 0 {
		return translate("update profile", sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) FindProfile(ctx context.Context, wallet id.WalletAddress) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE wallet_address = $1`
	p, err := scanProfile(s.conn(ctx).QueryRowContext(ctx, query, wallet.String()))
	if err != nil {
		return nil, translate("find profile", err)
	}
	return p, nil
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p      models.Profile
		wallet string
		kind   string
	)
	if err := row.Scan(&wallet, &p.Name, &p.Email, &kind, &p.Verified, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.WalletAddress = id.WalletAddress(wallet)
	p.Kind = models.Kind(kind)
	return &p, nil
}
