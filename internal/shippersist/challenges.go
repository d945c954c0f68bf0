package shippersist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ChallengeCacheRepo is the ship's local cache of in-flight block
// hand-off challenges (spec §6: "Challenges(challenge, lang,
// packet_type) cached locally so the ship knows how to resume a client
// on challenge redeem"). The master remains the authority on whether a
// challenge is still valid; this table only remembers which client
// codec/language to resume the session with once ChallengeLogin
// succeeds against the master.
type ChallengeCacheRepo struct {
	db *DB
}

func NewChallengeCacheRepo(db *DB) *ChallengeCacheRepo {
	return &ChallengeCacheRepo{db: db}
}

func (r *ChallengeCacheRepo) Put(ctx context.Context, challenge uint32, lang, packetType string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO challenges (challenge, lang, packet_type) VALUES ($1, $2, $3)
		 ON CONFLICT (challenge) DO UPDATE SET lang = EXCLUDED.lang, packet_type = EXCLUDED.packet_type`,
		int64(challenge), lang, packetType,
	)
	return err
}

// Take reads back and deletes the cached entry in one step — single-use,
// matching the master's own challenge semantics (spec §8: "a challenge
// consumed once cannot be consumed again").
func (r *ChallengeCacheRepo) Take(ctx context.Context, challenge uint32) (lang, packetType string, err error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return "", "", err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`SELECT lang, packet_type FROM challenges WHERE challenge = $1`, int64(challenge),
	).Scan(&lang, &packetType)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM challenges WHERE challenge = $1`, int64(challenge)); err != nil {
		return "", "", err
	}
	return lang, packetType, tx.Commit(ctx)
}
