package shippersist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound mirrors masterpersist.ErrNotFound for the ship-side store.
var ErrNotFound = errors.New("shippersist: not found")

// UserRow is the ship-local user record: the set of character ids and
// symbol-art ids owned by this account on this ship (spec §6).
type UserRow struct {
	ID           uint32
	CharacterIDs []uint32
	SymbolArtIDs []string
}

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, id uint32) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	return err
}

func (r *UserRepo) Find(ctx context.Context, id uint32) (*UserRow, error) {
	row := &UserRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, character_ids, symbol_art_ids FROM users WHERE id = $1`, id,
	).Scan(&row.ID, &row.CharacterIDs, &row.SymbolArtIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *UserRepo) AddCharacter(ctx context.Context, userID, characterID uint32) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET character_ids = array_append(character_ids, $2) WHERE id = $1`,
		userID, characterID,
	)
	return err
}

func (r *UserRepo) AddSymbolArt(ctx context.Context, userID uint32, symbolArtUUID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET symbol_art_ids = array_append(symbol_art_ids, $2) WHERE id = $1`,
		userID, symbolArtUUID,
	)
	return err
}
