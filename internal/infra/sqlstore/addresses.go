package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/ports"
)

var _ ports.AddressStore = (*DB)(nil)

// Exists reports whether the normalized address is already taken.
func (d *DB) Exists(ctx context.Context, address string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM addresses WHERE address = ?`,
		domain.NormalizeAddress(address),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertBatch inserts addresses in a single multi-row statement, skipping
// collisions, and returns the address strings actually persisted. Callers keep
// batches small (sub-batch size 20) to stay within parameter-count limits.
func (d *DB) InsertBatch(ctx context.Context, addrs []domain.Address) ([]string, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(addrs))
	args := make([]any, 0, len(addrs)*5)
	for _, a := range addrs {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
		args = append(args,
			a.ID, domain.NormalizeAddress(a.Address), a.OwnerID,
			a.CreatedAt.Unix(), nullableUnix(a.ExpiresAt),
		)
	}

	query := fmt.Sprintf(
		`INSERT INTO addresses (id, address, owner_id, created_at, expires_at)
		 VALUES %s
		 ON CONFLICT(address) DO NOTHING
		 RETURNING address`,
		strings.Join(placeholders, ", "),
	)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert addresses: %w", err)
	}
	defer rows.Close()

	var inserted []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return inserted, err
		}
		inserted = append(inserted, addr)
	}
	return inserted, rows.Err()
}

// CountActive counts the owner's addresses that have not expired at now.
func (d *DB) CountActive(ctx context.Context, ownerID string, now time.Time) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM addresses
		 WHERE owner_id = ? AND (expires_at IS NULL OR expires_at > ?)`,
		ownerID, now.Unix(),
	).Scan(&n)
	return n, err
}

// ListWindow lists the owner's addresses under @domainName created within
// [from, to], oldest first. Used to approximately reconstruct a batch once its
// ephemeral working copy has expired; overlapping batches may bleed in.
func (d *DB) ListWindow(ctx context.Context, ownerID, domainName string, from, to time.Time, limit int) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT address FROM addresses
		 WHERE owner_id = ? AND address LIKE ? AND created_at BETWEEN ? AND ?
		 ORDER BY created_at ASC, address ASC
		 LIMIT ?`,
		ownerID, "%@"+domain.NormalizeAddress(domainName), from.Unix(), to.Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}
