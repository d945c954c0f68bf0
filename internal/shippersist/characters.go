package shippersist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// CharacterRow is one persisted character: the opaque per-system blobs
// spec §6 names (data, inventory, palette, flags), each owned and
// (de)serialized by its respective in-block subsystem rather than by
// this package.
type CharacterRow struct {
	ID        uint32
	UserID    uint32
	Data      []byte
	Inventory []byte
	Palette   []byte
	Flags     []byte
}

type CharacterRepo struct {
	db *DB
}

func NewCharacterRepo(db *DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

func (r *CharacterRepo) Create(ctx context.Context, userID uint32, data []byte) (uint32, error) {
	var id uint32
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (user_id, data) VALUES ($1, $2) RETURNING id`,
		userID, data,
	).Scan(&id)
	return id, err
}

func (r *CharacterRepo) Find(ctx context.Context, id uint32) (*CharacterRow, error) {
	row := &CharacterRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, user_id, data, inventory, palette, flags FROM characters WHERE id = $1`, id,
	).Scan(&row.ID, &row.UserID, &row.Data, &row.Inventory, &row.Palette, &row.Flags)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *CharacterRepo) PutData(ctx context.Context, id uint32, data []byte) error {
	return r.putColumn(ctx, id, "data", data)
}

func (r *CharacterRepo) PutInventory(ctx context.Context, id uint32, data []byte) error {
	return r.putColumn(ctx, id, "inventory", data)
}

func (r *CharacterRepo) PutPalette(ctx context.Context, id uint32, data []byte) error {
	return r.putColumn(ctx, id, "palette", data)
}

func (r *CharacterRepo) PutFlags(ctx context.Context, id uint32, data []byte) error {
	return r.putColumn(ctx, id, "flags", data)
}

// putColumn updates one of the four fixed blob columns. The column name
// is always one of four internal constants, never caller input, so this
// is not a SQL-injection surface despite the string concatenation.
func (r *CharacterRepo) putColumn(ctx context.Context, id uint32, column string, data []byte) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE characters SET `+column+` = $2 WHERE id = $1`, id, data,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
