package masterpersist

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrExpired is returned when a challenge is found but past its deadline.
var ErrExpired = errors.New("masterpersist: challenge expired")

type ChallengeRepo struct {
	db  *DB
	ttl time.Duration
}

func NewChallengeRepo(db *DB, ttl time.Duration) *ChallengeRepo {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &ChallengeRepo{db: db, ttl: ttl}
}

// New mints a 32-bit random challenge for userID, expiring in c.ttl, and
// sweeps already-expired challenges as a side effect (spec §4.2: "Expired
// challenges are swept on every challenge operation").
func (c *ChallengeRepo) New(ctx context.Context, userID uint32) (uint32, error) {
	if err := c.sweep(ctx); err != nil {
		return 0, err
	}

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	value := binary.LittleEndian.Uint32(buf[:])

	_, err := c.db.Pool.Exec(ctx,
		`INSERT INTO challenges (user_id, challenge, until) VALUES ($1, $2, $3)`,
		userID, int64(value), time.Now().Add(c.ttl),
	)
	return value, err
}

// Consume looks up (challenge, userID), checks expiry, and deletes it
// whether or not it was still valid — challenges are single-use.
func (c *ChallengeRepo) Consume(ctx context.Context, userID uint32, challenge uint32) error {
	if err := c.sweep(ctx); err != nil {
		return err
	}

	var until time.Time
	err := c.db.Pool.QueryRow(ctx,
		`SELECT until FROM challenges WHERE user_id = $1 AND challenge = $2`,
		userID, int64(challenge),
	).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	_, _ = c.db.Pool.Exec(ctx,
		`DELETE FROM challenges WHERE user_id = $1 AND challenge = $2`,
		userID, int64(challenge),
	)

	if time.Now().After(until) {
		return ErrExpired
	}
	return nil
}

func (c *ChallengeRepo) sweep(ctx context.Context) error {
	_, err := c.db.Pool.Exec(ctx, `DELETE FROM challenges WHERE until < now()`)
	return err
}
