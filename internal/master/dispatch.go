package master

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/config"
	"github.com/shipcluster/server/internal/masterpersist"
	"github.com/shipcluster/server/internal/masterproto"
	"github.com/shipcluster/server/internal/workerpool"
)

// Dispatcher resolves one masterproto.Action at a time into its Result,
// fanning out to the masterpersist repos and the argon2id worker pool. One
// Dispatcher is shared by every ship connection; all its state is already
// safe for concurrent use (pgxpool, Registry's own mutex, the worker pool).
type Dispatcher struct {
	log    *zap.Logger
	cfg    config.MasterConfig
	users  *masterpersist.UserRepo
	logins *masterpersist.LoginRepo
	chal   *masterpersist.ChallengeRepo
	ships  *masterpersist.ShipRepo
	reg    *Registry
	pool   *workerpool.Pool
}

func NewDispatcher(
	cfg config.MasterConfig,
	users *masterpersist.UserRepo,
	logins *masterpersist.LoginRepo,
	chal *masterpersist.ChallengeRepo,
	ships *masterpersist.ShipRepo,
	reg *Registry,
	pool *workerpool.Pool,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{cfg: cfg, users: users, logins: logins, chal: chal, ships: ships, reg: reg, pool: pool, log: log}
}

// ShipPSK looks up a registered ship's pre-shared key, used by the secure
// channel handshake (spec §4.1) to authenticate an incoming ship connection
// before any action is ever dispatched for it.
func (d *Dispatcher) ShipPSK(ctx context.Context, shipID uint32) (string, error) {
	return d.ships.PSK(ctx, shipID)
}

// VerifyShipPSK is called from the secure channel handshake's post-ECDH
// authenticated exchange, before any masterproto.Action is ever dispatched
// for the connecting ship. An unregistered ship id trusts the first PSK it
// presents (consistent with the channel's own host-key TOFU model) and
// persists it for every later connection; a registered one must match in
// constant time.
func (d *Dispatcher) VerifyShipPSK(ctx context.Context, shipID uint32, presented string) bool {
	stored, err := d.ShipPSK(ctx, shipID)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := d.ships.Register(ctx, shipID, presented); err != nil {
			d.log.Warn("ship psk: trust-on-first-use registration failed", zap.Uint32("ship_id", shipID), zap.Error(err))
			return false
		}
		return true
	}
	if err != nil {
		d.log.Warn("ship psk: lookup failed", zap.Uint32("ship_id", shipID), zap.Error(err))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// Dispatch resolves a single action to its result. It never returns a Go
// error for expected failures (bad password, unknown ship) — those surface
// as masterproto.Result values; a non-nil error return means an
// infrastructure failure (DB down, context canceled) that the caller should
// treat as a transport-level fault rather than a normal RPC outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, action masterproto.Action) (masterproto.Result, error) {
	switch a := action.(type) {
	case masterproto.RegisterShip:
		// VerifyShipPSK has already authenticated this ship's PSK during the
		// secure channel handshake, before any action reaches here; this
		// action only needs to publish the ship into the live registry.
		return d.reg.Register(a.Info), nil

	case masterproto.UnregisterShip:
		return d.reg.Unregister(a.ID), nil

	case masterproto.UserLogin:
		return d.login(ctx, a.Username, a.Password, a.IP)

	case masterproto.SegaIDLogin:
		return d.login(ctx, a.Username, a.Password, a.IP)

	case masterproto.UserRegister:
		return d.register(ctx, a.Username, a.Password)

	case masterproto.SetNickname:
		if err := d.users.SetNickname(ctx, a.ID, a.Nickname); err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.Ok{}, nil

	case masterproto.GetUserInfo:
		row, err := d.users.FindByID(ctx, a.ID)
		if err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.Blob{Data: row.Blob.UserInfo}, nil

	case masterproto.PutUserInfo:
		if err := d.users.PutUserInfo(ctx, a.ID, a.Data); err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.Ok{}, nil

	case masterproto.PutAccountFlags:
		if err := d.users.PutAccountFlags(ctx, a.ID, a.Flags); err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.Ok{}, nil

	case masterproto.GetStorage:
		row, err := d.users.FindByID(ctx, a.ID)
		if err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.Blob{Data: row.Blob.Storages[a.StorageID]}, nil

	case masterproto.PutStorage:
		if err := d.users.PutStorage(ctx, a.ID, a.StorageID, a.Data); err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.Ok{}, nil

	case masterproto.GetSettings:
		row, err := d.users.FindByID(ctx, a.ID)
		if err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.SettingsBlob{Settings: row.Blob.Settings}, nil

	case masterproto.PutSettings:
		if err := d.users.PutSettings(ctx, a.ID, a.Settings); err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.Ok{}, nil

	case masterproto.PutUUID:
		if err := d.users.PutUUID(ctx, a.ID, a.UUID); err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.Ok{}, nil

	case masterproto.NewBlockChallenge:
		value, err := d.chal.New(ctx, a.PlayerID)
		if err != nil {
			return nil, err
		}
		return masterproto.Challenge{Value: value}, nil

	case masterproto.ChallengeLogin:
		row, err := d.users.FindByID(ctx, a.PlayerID)
		if err != nil {
			return resultForRepoErr(err), nil
		}
		if err := d.chal.Consume(ctx, a.PlayerID, a.Challenge); err != nil {
			return resultForRepoErr(err), nil
		}
		return masterproto.UserLoginResult{ID: row.ID, Nickname: row.Nickname}, nil

	case masterproto.GetLogins:
		rows, err := d.logins.Recent(ctx, a.ID, d.cfg.LoginHistoryLimit)
		if err != nil {
			return nil, err
		}
		attempts := make([]masterproto.LoginAttempt, len(rows))
		for i, row := range rows {
			attempts[i] = masterproto.LoginAttempt{IP: row.IP, Outcome: string(row.Outcome), Timestamp: row.Timestamp}
		}
		return masterproto.LoginHistory{Attempts: attempts}, nil
	}

	return masterproto.Error{Message: "unrecognized action"}, nil
}

// login implements the shared credential-check path for UserLogin and
// SegaIDLogin: look the account up, verify the password off the event loop
// via the worker pool, and record the outcome. An unknown username and a
// wrong password are both reported distinctly to the caller (NotFound vs
// InvalidPassword) but an account the registration gate would hide never
// reaches this far in the first place — that gate only affects UserRegister.
func (d *Dispatcher) login(ctx context.Context, username, password, ip string) (masterproto.Result, error) {
	row, err := d.users.FindByUsername(ctx, username)
	if errors.Is(err, masterpersist.ErrNotFound) {
		_ = d.logins.Record(ctx, 0, ip, masterpersist.LoginNotFound)
		return masterproto.NotFound{}, nil
	}
	if err != nil {
		return nil, err
	}

	ok, err := workerpool.Do(ctx, d.pool, func() bool {
		return masterpersist.VerifyPassword(row.PasswordHash, password)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		_ = d.logins.Record(ctx, row.ID, ip, masterpersist.LoginInvalidPassword)
		return masterproto.InvalidPassword{ID: row.ID}, nil
	}

	if err := d.logins.Record(ctx, row.ID, ip, masterpersist.LoginSuccessful); err != nil {
		return nil, err
	}
	return masterproto.UserLoginResult{ID: row.ID, Nickname: row.Nickname}, nil
}

// register implements UserRegister, including the registration-enabled
// gate (spec §4.2): when registration is disabled it returns NotFound
// rather than a dedicated "registration closed" result. A taken username
// is reported as AlreadyTaken.
func (d *Dispatcher) register(ctx context.Context, username, password string) (masterproto.Result, error) {
	if !d.cfg.RegistrationEnabled {
		return masterproto.NotFound{}, nil
	}

	hash, err := masterpersist.HashPassword(password)
	if err != nil {
		return nil, err
	}

	id, err := d.users.Create(ctx, username, hash)
	if errors.Is(err, masterpersist.ErrAlreadyTaken) {
		return masterproto.AlreadyTaken{}, nil
	}
	if err != nil {
		return nil, err
	}
	return masterproto.NewID{ID: id}, nil
}

// resultForRepoErr maps a masterpersist sentinel error to the matching
// masterproto.Result, for the many operations whose only failure mode is
// "no such account".
func resultForRepoErr(err error) masterproto.Result {
	switch {
	case errors.Is(err, masterpersist.ErrNotFound):
		return masterproto.NotFound{}
	case errors.Is(err, masterpersist.ErrAlreadyTaken):
		return masterproto.AlreadyTaken{}
	case errors.Is(err, masterpersist.ErrExpired):
		return masterproto.NotFound{}
	default:
		return masterproto.Error{Message: err.Error()}
	}
}
