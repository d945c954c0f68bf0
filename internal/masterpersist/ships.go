package masterpersist

import "context"

// ShipRepo persists the pre-shared key assigned to each registered ship id,
// used to authenticate a ship's secure-channel handshake beyond TOFU.
type ShipRepo struct {
	db *DB
}

func NewShipRepo(db *DB) *ShipRepo {
	return &ShipRepo{db: db}
}

func (r *ShipRepo) Register(ctx context.Context, id uint32, psk string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO ships (id, psk) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET psk = EXCLUDED.psk`,
		id, psk,
	)
	return err
}

func (r *ShipRepo) Unregister(ctx context.Context, id uint32) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM ships WHERE id = $1`, id)
	return err
}

func (r *ShipRepo) PSK(ctx context.Context, id uint32) (string, error) {
	var psk string
	err := r.db.Pool.QueryRow(ctx, `SELECT psk FROM ships WHERE id = $1`, id).Scan(&psk)
	return psk, err
}
