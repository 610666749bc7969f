package repository

import (
	"context"
	"database/sql"
	"time"
)

// BlacklistRepo is the revocation store: rows in 'token_blacklist'
// mark token ids as revoked until they would have expired on their
// own. Writes are append-only; reads happen on the hot path of every
// authenticated request, so token_jti carries a unique index and the
// lookup is a point query.
type BlacklistRepo struct{ DB *sql.DB }

func NewBlacklistRepo(db *sql.DB) *BlacklistRepo { return &BlacklistRepo{DB: db} }

// Revoke records a jti as revoked until exp. Revoking an already
// revoked jti is a no-op, not an error.
func (r *BlacklistRepo) Revoke(ctx context.Context, jti string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO token_blacklist (token_jti, expires_at) VALUES (?,?)
		 ON DUPLICATE KEY UPDATE token_jti = token_jti`,
		jti, exp.UTC())
	return err
}

// IsRevoked reports whether a jti is on the blacklist. Entries past
// their expiry still answer true until pruned; by then the token's
// own exp check has already rejected it, so no false positive is
// observable.
func (r *BlacklistRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM token_blacklist WHERE token_jti=? LIMIT 1", jti).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Prune deletes entries whose recorded expiry passed before now and
// returns how many were removed. Correctness never depends on this
// running; only table growth does.
func (r *BlacklistRepo) Prune(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM token_blacklist WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
