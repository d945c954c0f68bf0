package handler

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/shipcluster/server/internal/inventory"
	"github.com/shipcluster/server/internal/masterproto"
	"github.com/shipcluster/server/internal/packet"
	"github.com/shipcluster/server/internal/palette"
	"github.com/shipcluster/server/internal/session"
	"github.com/shipcluster/server/internal/shippersist"
	"github.com/shipcluster/server/internal/worldmap"
)

// masterCallTimeout bounds every individual master RPC a handler makes
// inline on the dispatching goroutine, so a stalled master connection
// can't wedge a block's per-connection task indefinitely.
const masterCallTimeout = 5 * time.Second

// CharacterSummary is one entry of a character-select listing: just
// enough identity to render a character picker, decoded from the
// persisted data blob rather than carrying the full Player state.
type CharacterSummary struct {
	ID       uint32
	Nickname string
	Class    uint8
}

// HandleSegaIDLogin and HandleUserLogin both drive spec §4.5's login
// transition (LoggingIn → NewUsername | CharacterSelect). They are kept
// as distinct opcodes only because the master records them under
// distinct login-attempt labels (masterproto.SegaIDLogin vs UserLogin).
func HandleSegaIDLogin(sess *session.Session, r *packet.Reader, deps *Deps) {
	handleLogin(sess, r, deps, true)
}

func HandleUserLogin(sess *session.Session, r *packet.Reader, deps *Deps) {
	handleLogin(sess, r, deps, false)
}

func handleLogin(sess *session.Session, r *packet.Reader, deps *Deps, segaID bool) {
	username := r.ReadS()
	password := r.ReadS()
	ip := remoteIP(sess)

	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	var action masterproto.Action
	if segaID {
		action = masterproto.SegaIDLogin{Username: username, Password: password, IP: ip}
	} else {
		action = masterproto.UserLogin{Username: username, Password: password, IP: ip}
	}

	result, err := deps.Master.Call(ctx, action)
	if err != nil {
		deps.Log.Warn("login call failed", zap.Error(err))
		failLogin(sess)
		return
	}

	login, ok := result.(masterproto.UserLoginResult)
	if !ok {
		deps.Log.Debug("login rejected", zap.Any("result", result))
		failLogin(sess)
		return
	}

	sess.PlayerID = login.ID
	_ = writeFrame(sess, builder.LoginResponse(true))

	if login.Nickname == "" {
		sess.SetState(packet.StateNewUsername)
		_ = writeFrame(sess, builder.NicknameRequest(0))
		return
	}

	sess.Nickname = login.Nickname
	finishLogin(sess, deps)
}

// failLogin reports a failed auth attempt and tears the connection down,
// matching spec §7's "auth errors report LoginResponse{status=Failure}
// then disconnect."
func failLogin(sess *session.Session) {
	_ = writeFrame(sess, builder.LoginResponse(false))
	sess.MarkReadyToShutdown()
}

// finishLogin fetches the account's stored UserInfo blob and transitions
// the session into CharacterSelect (spec §8.1: "server sends UserInfo,
// then transitions to CharacterSelect").
func finishLogin(sess *session.Session, deps *Deps) {
	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	if err := deps.Users.Create(ctx, sess.PlayerID); err != nil {
		deps.Log.Warn("ensure ship-local user failed", zap.Error(err))
	}

	result, err := deps.Master.Call(ctx, masterproto.GetUserInfo{ID: sess.PlayerID})
	if err != nil {
		deps.Log.Warn("get user info failed", zap.Error(err))
	} else if blob, ok := result.(masterproto.Blob); ok {
		_ = writeFrame(sess, builder.UserInfo(blob.Data))
	}

	sess.SetState(packet.StateCharacterSelect)
}

// HandleNicknameResponse processes the new-username claim a session in
// StateNewUsername submits (spec §8.1/§8.2).
func HandleNicknameResponse(sess *session.Session, r *packet.Reader, deps *Deps) {
	nickname := r.ReadS()

	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	result, err := deps.Master.Call(ctx, masterproto.SetNickname{ID: sess.PlayerID, Nickname: nickname})
	if err != nil {
		deps.Log.Warn("set nickname failed", zap.Error(err))
		_ = writeFrame(sess, builder.NicknameRequest(1))
		return
	}
	if _, ok := result.(masterproto.Ok); !ok {
		// AlreadyTaken or any other non-Ok result: stay in NewUsername and
		// ask again (spec §8.2: nickname collision re-prompts, it does not
		// disconnect the session).
		_ = writeFrame(sess, builder.NicknameRequest(1))
		return
	}

	sess.Nickname = nickname
	finishLogin(sess, deps)
}

// HandleCharacterList answers a character-select listing request by
// decoding each owned character's identity out of its persisted data
// blob.
func HandleCharacterList(sess *session.Session, r *packet.Reader, deps *Deps) {
	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	user, err := deps.Users.Find(ctx, sess.PlayerID)
	if err != nil {
		_ = writeFrame(sess, builder.CharacterListResult(nil))
		return
	}

	summaries := make([]CharacterSummary, 0, len(user.CharacterIDs))
	for _, id := range user.CharacterIDs {
		row, err := deps.Characters.Find(ctx, id)
		if err != nil {
			deps.Log.Debug("character list: load failed", zap.Uint32("character_id", id), zap.Error(err))
			continue
		}
		nickname, class, _, _, err := LoadPlayerData(row.Data)
		if err != nil {
			deps.Log.Debug("character list: decode failed", zap.Uint32("character_id", id), zap.Error(err))
			continue
		}
		summaries = append(summaries, CharacterSummary{ID: id, Nickname: nickname, Class: class})
	}

	_ = writeFrame(sess, builder.CharacterListResult(summaries))
}

// HandleStartGame creates a new character (characterID 0) or resumes an
// existing one, then loads it fully into memory and advances the session
// to StatePreInGame, ready for EnterWorld.
func HandleStartGame(sess *session.Session, r *packet.Reader, deps *Deps) {
	characterID := r.ReadD()
	class := r.ReadC()

	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	var (
		row *shippersist.CharacterRow
		err error
	)
	if characterID == 0 {
		row, err = createCharacter(ctx, sess, class, deps)
	} else {
		row, err = deps.Characters.Find(ctx, characterID)
	}
	if err != nil {
		deps.Log.Warn("start game: load/create character failed", zap.Error(err))
		return
	}

	p, err := loadPlayer(ctx, sess, row, deps)
	if err != nil {
		deps.Log.Warn("start game: build player failed", zap.Error(err))
		return
	}

	sess.CharacterID = row.ID
	deps.Players.Put(p)
	sess.SetState(packet.StatePreInGame)
}

func createCharacter(ctx context.Context, sess *session.Session, class uint8, deps *Deps) (*shippersist.CharacterRow, error) {
	data := NewCharacterData(sess.Nickname, class)
	id, err := deps.Characters.Create(ctx, sess.PlayerID, data)
	if err != nil {
		return nil, fmt.Errorf("create character: %w", err)
	}
	if err := deps.Users.AddCharacter(ctx, sess.PlayerID, id); err != nil {
		deps.Log.Warn("add character to ship-local user failed", zap.Error(err))
	}
	return &shippersist.CharacterRow{ID: id, UserID: sess.PlayerID, Data: data}, nil
}

// loadPlayer decodes row's persisted blobs into a live Player, pulling
// the three account-wide storage tiers from the master since they are
// not part of the ship-local character row (spec §4.8/§6).
func loadPlayer(ctx context.Context, sess *session.Session, row *shippersist.CharacterRow, deps *Deps) (*Player, error) {
	nickname, class, sublevels, mapID, err := LoadPlayerData(row.Data)
	if err != nil {
		return nil, fmt.Errorf("decode character data: %w", err)
	}

	acc, err := inventory.LoadCharacterBlob(row.Inventory)
	if err != nil {
		deps.Log.Warn("decode character inventory failed, starting blank", zap.Error(err))
		acc = inventory.NewAccount()
	}
	if err := loadAccountStorages(ctx, sess.PlayerID, acc, deps); err != nil {
		deps.Log.Debug("load account storages failed", zap.Error(err))
	}

	pal, err := palette.LoadPalette(row.Palette, acc, builder)
	if err != nil {
		deps.Log.Warn("decode character palette failed, starting blank", zap.Error(err))
		pal = palette.NewSet(acc, builder)
	}

	p := NewPlayer(sess, worldmap.ObjectID(row.ID), acc, pal)
	p.SetIdentity(nickname, class, sublevels, mapID)
	sess.Nickname = nickname
	return p, nil
}

func loadAccountStorages(ctx context.Context, playerID uint32, acc *inventory.Account, deps *Deps) error {
	for _, tier := range []inventory.StorageID{inventory.StorageDefault, inventory.StoragePremium, inventory.StorageExtend1} {
		result, err := deps.Master.Call(ctx, masterproto.GetStorage{ID: playerID, StorageID: uint8(tier)})
		if err != nil {
			return err
		}
		blob, ok := result.(masterproto.Blob)
		if !ok {
			continue
		}
		if err := acc.LoadStorageTier(tier, blob.Data); err != nil {
			return err
		}
	}
	return nil
}

// HandleBlockSwitchRequest asks the master for a one-time challenge and
// hands the client the target block's address so it can reconnect
// straight to StateLoggingIn's BlockLogin path without re-entering a
// password (spec §8.3).
func HandleBlockSwitchRequest(sess *session.Session, r *packet.Reader, deps *Deps) {
	blockID := r.ReadD()

	addr, ok := deps.BlockAddrs[blockID]
	if !ok {
		deps.Log.Debug("block switch: unknown block", zap.Uint32("block_id", blockID))
		return
	}
	if addr.IP == "" {
		if host, _, err := net.SplitHostPort(sess.Conn().LocalAddr().String()); err == nil {
			addr.IP = host
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	result, err := deps.Master.Call(ctx, masterproto.NewBlockChallenge{PlayerID: sess.PlayerID})
	if err != nil {
		deps.Log.Warn("block switch: challenge request failed", zap.Error(err))
		return
	}
	challenge, ok := result.(masterproto.Challenge)
	if !ok {
		deps.Log.Debug("block switch: unexpected challenge result", zap.Any("result", result))
		return
	}

	if err := deps.Challenges.Put(ctx, challenge.Value, sess.TextLanguage, packetTypeTag(sess.PacketType)); err != nil {
		deps.Log.Warn("block switch: cache challenge failed", zap.Error(err))
	}

	_ = writeFrame(sess, builder.BlockSwitchResponse(addr.IP, addr.Port, challenge.Value, sess.PlayerID))
}

// HandleBlockLogin redeems a block-switch challenge against the master
// and resumes the session straight to StateCharacterSelect without a
// password (spec §8.3).
func HandleBlockLogin(sess *session.Session, r *packet.Reader, deps *Deps) {
	playerID := r.ReadD()
	challenge := r.ReadD()

	ctx, cancel := context.WithTimeout(context.Background(), masterCallTimeout)
	defer cancel()

	result, err := deps.Master.Call(ctx, masterproto.ChallengeLogin{Challenge: challenge, PlayerID: playerID})
	if err != nil {
		deps.Log.Warn("block login: challenge redeem failed", zap.Error(err))
		failLogin(sess)
		return
	}
	login, ok := result.(masterproto.UserLoginResult)
	if !ok {
		failLogin(sess)
		return
	}

	sess.PlayerID = login.ID
	sess.Nickname = login.Nickname

	if lang, packetType, err := deps.Challenges.Take(ctx, challenge); err == nil {
		sess.TextLanguage = lang
		applyPacketTypeTag(sess, packetType)
	}

	finishLogin(sess, deps)
	_ = writeFrame(sess, builder.LoginResponse(true))
}

func remoteIP(sess *session.Session) string {
	addr := sess.Conn().RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// packetTypeTag/applyPacketTypeTag convert between session.PacketType and
// the string ChallengeCacheRepo stores, so a resumed block-switch
// connection is read with the same codec the client was using on the
// block it came from.
func packetTypeTag(pt session.PacketType) string {
	switch pt {
	case session.PacketTypeNA:
		return "na"
	case session.PacketTypeVita:
		return "vita"
	default:
		return "jp"
	}
}

func applyPacketTypeTag(sess *session.Session, tag string) {
	// Every accepted connection starts as PacketTypeJP, so a resumed "jp"
	// tag needs no action; "na" goes through the one-way NA upgrade and
	// "vita" sets the Vita variant directly.
	switch tag {
	case "na":
		sess.UpgradeToNA()
	case "vita":
		sess.PacketType = session.PacketTypeVita
	}
}
