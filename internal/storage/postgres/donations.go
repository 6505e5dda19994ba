package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"chariblock/internal/donation/models"
	id "chariblock/pkg/domain"
)

const donationColumns = `d.id, d.charity_id, c.name, d.donor_address, d.amount, d.tx_hash,
	d.block_number, d.confirmed, d.created_at, d.confirmed_at`

func (s *Store) CreateDonation(ctx context.Context, d *models.Donation) error {
	query := `
		INSERT INTO donations (charity_id, donor_address, amount, tx_hash, block_number,
			confirmed, created_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var donationID int64
	err := s.conn(ctx).QueryRowContext(ctx, query,
		int64(d.CharityID), d.DonorAddress.String(), d.Amount, d.TxHash.String(), d.BlockNumber,
		d.Confirmed, d.CreatedAt, d.ConfirmedAt,
	).Scan(&donationID)
	if err != nil {
		return translate("create donation", err)
	}
	d.ID = id.DonationID(donationID)
	return nil
}

func (s *Store) FindDonation(ctx context.Context, donationID id.DonationID) (*models.Donation, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations d JOIN charities c ON c.id = d.charity_id
		WHERE d.id = $1
	`
	d, err := scanDonation(s.conn(ctx).QueryRowContext(ctx, query, int64(donationID)))
	if err != nil {
		return nil, translate("find donation", err)
	}
	return d, nil
}

func (s *Store) DonationExists(ctx context.Context, txHash id.TxHash) (bool, error) {
	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM donations WHERE tx_hash = $1)`, txHash.String(),
	).Scan(&exists)
	if err != nil {
		return false, translate("check donation exists", err)
	}
	return exists, nil
}

func (s *Store) ListDonations(ctx context.Context, filter models.Filter) ([]*models.Donation, error) {
	var (
		where []string
		args  []any
	)
	if filter.CharityID != 0 {
		args = append(args, int64(filter.CharityID))
		where = append(where, fmt.Sprintf("d.charity_id = $%d", len(args)))
	}
	if filter.DonorAddress != "" {
		args = append(args, filter.DonorAddress.String())
		where = append(where, fmt.Sprintf("d.donor_address = $%d", len(args)))
	}
	query := `SELECT ` + donationColumns + ` FROM donations d JOIN charities c ON c.id = d.charity_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY d.created_at DESC, d.id DESC`

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate("list donations", err)
	}
	defer rows.Close()

	out := make([]*models.Donation, 0)
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, translate("scan donation", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list donations", err)
	}
	return out, nil
}

func (s *Store) CountDonations(ctx context.Context, charityID id.CharityID) (int, error) {
	var n int
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM donations WHERE charity_id = $1 AND confirmed`, int64(charityID),
	).Scan(&n)
	if err != nil {
		return 0, translate("count donations", err)
	}
	return n, nil
}

func scanDonation(row rowScanner) (*models.Donation, error) {
	var (
		d                     models.Donation
		donationID, charityID int64
		donor, hash           string
		block                 sql.NullInt64
		confirmedAt           sql.NullTime
	)
	err := row.Scan(&donationID, &charityID, &d.CharityName, &donor, &d.Amount, &hash,
		&block, &d.Confirmed, &d.CreatedAt, &confirmedAt)
	if err != nil {
		return nil, err
	}
	d.ID = id.DonationID(donationID)
	d.CharityID = id.CharityID(charityID)
	d.DonorAddress = id.WalletAddress(donor)
	d.TxHash = id.TxHash(hash)
	if block.Valid {
		d.BlockNumber = &block.Int64
	}
	if confirmedAt.Valid {
		d.ConfirmedAt = &confirmedAt.Time
	}
	return &d, nil
}
