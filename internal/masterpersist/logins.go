package masterpersist

import (
	"context"
	"time"
)

// LoginOutcome is the recorded result of a login attempt.
type LoginOutcome string

const (
	LoginSuccessful      LoginOutcome = "successful"
	LoginInvalidPassword LoginOutcome = "invalid_password"
	LoginNotFound        LoginOutcome = "not_found"
)

type LoginRow struct {
	IP        string
	Outcome   LoginOutcome
	Timestamp time.Time
}

type LoginRepo struct {
	db *DB
}

func NewLoginRepo(db *DB) *LoginRepo {
	return &LoginRepo{db: db}
}

func (r *LoginRepo) Record(ctx context.Context, userID uint32, ip string, outcome LoginOutcome) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO logins (user_id, ip, status) VALUES ($1, $2, $3)`,
		userID, ip, string(outcome),
	)
	return err
}

// Recent returns the most recent login attempts for userID, newest first,
// capped at limit (spec's GetLogins returns up to 50).
func (r *LoginRepo) Recent(ctx context.Context, userID uint32, limit int) ([]LoginRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT ip, status, timestamp FROM logins WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoginRow
	for rows.Next() {
		var row LoginRow
		var status string
		if err := rows.Scan(&row.IP, &status, &row.Timestamp); err != nil {
			return nil, err
		}
		row.Outcome = LoginOutcome(status)
		out = append(out, row)
	}
	return out, rows.Err()
}
