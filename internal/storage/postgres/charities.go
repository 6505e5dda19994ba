package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"chariblock/internal/charity/models"
	id "chariblock/pkg/domain"
	"chariblock/pkg/platform/sentinel"
)

const charityColumns = `id, name, description, wallet_address, target_amount, raised_amount, category, status,
	creator_name, creator_email, creator_wallet, gov_id_hash, gov_id_url,
	approval_doc_hash, approval_doc_url, created_at, updated_at, approved_at`

func (s *Store) CreateCharity(ctx context.Context, c *models.Charity) error {
	query := `
		INSERT INTO charities (name, description, wallet_address, target_amount, raised_amount, category, status,
			creator_name, creator_email, creator_wallet, gov_id_hash, gov_id_url,
			approval_doc_hash, approval_doc_url, created_at, updated_at, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`
	var charityID int64
	err := s.conn(ctx).QueryRowContext(ctx, query,
		c.Name, c.Description, c.WalletAddress.String(), c.TargetAmount, c.RaisedAmount,
		string(c.Category), string(c.Status), c.CreatorName, c.CreatorEmail, c.CreatorWallet.String(),
		c.GovIDDocument.Hash, c.GovIDDocument.URL, c.ApprovalDoc.Hash, c.ApprovalDoc.URL,
		c.CreatedAt, c.UpdatedAt, c.ApprovedAt,
	).Scan(&charityID)
	if err != nil {
		return translate("create charity", err)
	}
	c.ID = id.CharityID(charityID)
	return nil
}

func (s *Store) FindCharity(ctx context.Context, charityID id.CharityID) (*models.Charity, error) {
	query := `SELECT ` + charityColumns + ` FROM charities WHERE id = $1`
	c, err := scanCharity(s.conn(ctx).QueryRowContext(ctx, query, int64(charityID)))
	if err != nil {
		return nil, translate("find charity", err)
	}
	return c, nil
}

// LockCharity reads the charity with a row lock held until the surrounding
// transaction ends. Outside RunInTx the lock is released immediately.
func (s *Store) LockCharity(ctx context.Context, charityID id.CharityID) (*models.Charity, error) {
	query := `SELECT ` + charityColumns + ` FROM charities WHERE id = $1 FOR UPDATE`
	c, err := scanCharity(s.conn(ctx).QueryRowContext(ctx, query, int64(charityID)))
	if err != nil {
		return nil, translate("lock charity", err)
	}
	return c, nil
}

func (s *Store) ListCharities(ctx context.Context, filter models.Filter) ([]*models.Charity, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.CreatorWallet != "" {
		args = append(args, filter.CreatorWallet.String())
		where = append(where, fmt.Sprintf("creator_wallet = $%d", len(args)))
	}
	query := `SELECT ` + charityColumns + ` FROM charities`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate("list charities", err)
	}
	defer rows.Close()

	out := make([]*models.Charity, 0)
	for rows.Next() {
		c, err := scanCharity(rows)
		if err != nil {
			return nil, translate("scan charity", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list charities", err)
	}
	return out, nil
}

func (s *Store) AddRaisedAmount(ctx context.Context, charityID id.CharityID, delta decimal.Decimal, updatedAt time.Time) (decimal.Decimal, error) {
	query := `
		UPDATE charities
		SET raised_amount = raised_amount + $2, updated_at = $3
		WHERE id = $1
		RETURNING raised_amount
	`
	var raised decimal.Decimal
	if err := s.conn(ctx).QueryRowContext(ctx, query, int64(charityID), delta, updatedAt).Scan(&raised); err != nil {
		return decimal.Zero, translate("add raised amount", err)
	}
	return raised, nil
}

func (s *Store) UpdateCharityStatus(ctx context.Context, charityID id.CharityID, status models.Status, approvedAt *time.Time, updatedAt time.Time) error {
	query := `
		UPDATE charities
		SET status = $2, approved_at = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.conn(ctx).ExecContext(ctx, query, int64(charityID), string(status), approvedAt, updatedAt)
	if err != nil {
		return translate("update charity status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return translate("update charity status rows affected", err)
	}
	if rows == 0 {
		return translate("update charity status", sentinel.ErrNotFound)
	}
	return nil
}

func scanCharity(row rowScanner) (*models.Charity, error) {
	var (
		c                models.Charity
		charityID        int64
		wallet, creator  string
		category, status string
		approvedAt       sql.NullTime
	)
	err := row.Scan(&charityID, &c.Name, &c.Description, &wallet, &c.TargetAmount, &c.RaisedAmount,
		&category, &status, &c.CreatorName, &c.CreatorEmail, &creator,
		&c.GovIDDocument.Hash, &c.GovIDDocument.URL, &c.ApprovalDoc.Hash, &c.ApprovalDoc.URL,
		&c.CreatedAt, &c.UpdatedAt, &approvedAt)
	if err != nil {
		return nil, err
	}
	c.ID = id.CharityID(charityID)
	c.WalletAddress = id.WalletAddress(wallet)
	c.CreatorWallet = id.WalletAddress(creator)
	c.Category = models.Category(category)
	c.Status = models.Status(status)
	if approvedAt.Valid {
		c.ApprovedAt = &approvedAt.Time
	}
	return &c, nil
}
