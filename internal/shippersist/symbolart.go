package shippersist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// SymbolArtRow is one user-authored symbol art asset, referenced by uuid
// and streamed on demand (spec §6, glossary: Symbol Art).
type SymbolArtRow struct {
	UUID string
	Name string
	Data []byte
}

type SymbolArtRepo struct {
	db *DB
}

func NewSymbolArtRepo(db *DB) *SymbolArtRepo {
	return &SymbolArtRepo{db: db}
}

func (r *SymbolArtRepo) Put(ctx context.Context, uuid, name string, data []byte) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO symbol_arts (uuid, name, data) VALUES ($1, $2, $3)
		 ON CONFLICT (uuid) DO UPDATE SET name = EXCLUDED.name, data = EXCLUDED.data`,
		uuid, name, data,
	)
	return err
}

func (r *SymbolArtRepo) Find(ctx context.Context, uuid string) (*SymbolArtRow, error) {
	row := &SymbolArtRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT uuid, name, data FROM symbol_arts WHERE uuid = $1`, uuid,
	).Scan(&row.UUID, &row.Name, &row.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
