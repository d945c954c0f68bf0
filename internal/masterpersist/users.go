package masterpersist

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound mirrors the account-store side of spec's NotFound result.
var ErrNotFound = errors.New("masterpersist: not found")

// ErrAlreadyTaken mirrors AlreadyTaken (username or nickname uniqueness).
var ErrAlreadyTaken = errors.New("masterpersist: already taken")

// UserBlob is the opaque per-account payload described by spec §6: in the
// original design a single MessagePack object. No msgpack library appears
// anywhere in the retrieved pack, so this is serialized as JSON — a
// documented, deliberate placeholder rather than a silent format change.
type UserBlob struct {
	Settings     string           `json:"settings"`
	Storages     map[uint8][]byte `json:"storages"`
	UserInfo     []byte           `json:"user_info"`
	AccountFlags []byte           `json:"account_flags"`
	IsGM         bool             `json:"is_gm"`
}

type UserRow struct {
	ID           uint32
	Username     string
	AltUsername  string
	PasswordHash string
	Nickname     string
	Blob         UserBlob
	LastUUID     uint64
	CreatedAt    time.Time
}

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, username, passwordHash string) (uint32, error) {
	var id uint32
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, data_blob) VALUES ($1, $2, $3) RETURNING id`,
		username, passwordHash, mustMarshalBlob(UserBlob{Storages: map[uint8][]byte{}}),
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrAlreadyTaken
	}
	return id, err
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*UserRow, error) {
	return r.scanOne(ctx, `WHERE username = $1`, username)
}

func (r *UserRepo) FindByID(ctx context.Context, id uint32) (*UserRow, error) {
	return r.scanOne(ctx, `WHERE id = $1`, id)
}

func (r *UserRepo) scanOne(ctx context.Context, where string, arg any) (*UserRow, error) {
	row := &UserRow{}
	var blob []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, username, COALESCE(alt_username, ''), password_hash, nickname, data_blob, last_uuid, created_at
		 FROM users `+where,
		arg,
	).Scan(&row.ID, &row.Username, &row.AltUsername, &row.PasswordHash, &row.Nickname, &blob, &row.LastUUID, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(blob, &row.Blob); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *UserRepo) SetNickname(ctx context.Context, id uint32, nickname string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET nickname = $2 WHERE id = $1 AND NOT EXISTS (
			SELECT 1 FROM users WHERE nickname = $2 AND id != $1
		)`,
		id, nickname,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyTaken
	}
	return nil
}

func (r *UserRepo) PutUserInfo(ctx context.Context, id uint32, data []byte) error {
	return r.mutateBlob(ctx, id, func(b *UserBlob) { b.UserInfo = data })
}

func (r *UserRepo) PutAccountFlags(ctx context.Context, id uint32, flags []byte) error {
	return r.mutateBlob(ctx, id, func(b *UserBlob) { b.AccountFlags = flags })
}

func (r *UserRepo) PutSettings(ctx context.Context, id uint32, settings string) error {
	return r.mutateBlob(ctx, id, func(b *UserBlob) { b.Settings = settings })
}

func (r *UserRepo) PutStorage(ctx context.Context, id uint32, storageID uint8, data []byte) error {
	return r.mutateBlob(ctx, id, func(b *UserBlob) {
		if b.Storages == nil {
			b.Storages = map[uint8][]byte{}
		}
		b.Storages[storageID] = data
	})
}

func (r *UserRepo) PutUUID(ctx context.Context, id uint32, uuid uint64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE users SET last_uuid = $2 WHERE id = $1`, id, uuid)
	return err
}

// mutateBlob performs a read-modify-write of the opaque blob column inside
// a transaction, per spec §4.2's "all are read-modify-write on a single
// account row, performed under a transaction".
func (r *UserRepo) mutateBlob(ctx context.Context, id uint32, mutate func(*UserBlob)) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT data_blob FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	var blob UserBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return err
	}
	mutate(&blob)

	encoded, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET data_blob = $2 WHERE id = $1`, id, encoded); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func mustMarshalBlob(b UserBlob) []byte {
	data, err := json.Marshal(b)
	if err != nil {
		panic(err)
	}
	return data
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
