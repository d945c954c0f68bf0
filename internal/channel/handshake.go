package channel

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/hkdf"
)

// ErrUnknownHostkey is returned by the client role when the TOFU predicate
// rejects the server's host key.
var ErrUnknownHostkey = errors.New("channel: unknown hostkey")

const handshakeReadTimeout = 5 * time.Second

// HostIdentity is the long-lived signing identity of one side of the
// master-ship channel (normally the master, which the ship trusts on
// first use).
type HostIdentity struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

func GenerateHostIdentity() (*HostIdentity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host identity: %w", err)
	}
	return &HostIdentity{Public: pub, Private: priv}, nil
}

// pskRequest/pskResponse are exchanged once, immediately after the AEAD is
// derived, authenticating which ship is on the other end of the channel
// beyond the anonymous ECDH the handshake otherwise provides (spec §6:
// "master PSK"). They ride over a throwaway channel.Session so the
// exchange is encrypted the same as everything that follows it.
type pskRequest struct {
	ShipID uint32
	PSK    string
}

type pskResponse struct {
	OK bool
}

// ErrPSKRejected is returned by either role when the post-handshake PSK
// exchange fails.
var ErrPSKRejected = errors.New("channel: ship psk rejected")

// VerifyPSK is called server-side with the ship id and PSK the connecting
// ship presented; it returns whether the channel should be allowed to
// proceed.
type VerifyPSK func(shipID uint32, presented string) bool

// ServerHandshake performs the server role of the handshake (§4.1) and
// returns the derived AEAD wrapped in a Secured; the payload codec is
// chosen later by NewSession (initially JSON).
// verifyPSK authenticates the connecting ship's identity once the AEAD is
// established; the connection is closed without ever reaching
// internal/master's dispatcher if it returns false.
func ServerHandshake(conn net.Conn, id *HostIdentity, verifyPSK VerifyPSK) (Secured, error) {
	// 1. send host public key, length-prefixed.
	if err := writeLenPrefixed(conn, id.Public); err != nil {
		return Secured{}, fmt.Errorf("send hostkey: %w", err)
	}

	curve := ecdh.P256()
	ephemeral, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return Secured{}, fmt.Errorf("generate ephemeral key: %w", err)
	}
	if err := writeLenPrefixed(conn, ephemeral.PublicKey().Bytes()); err != nil {
		return Secured{}, fmt.Errorf("send ephemeral pub: %w", err)
	}

	peerBytes, err := readLenPrefixedDeadline(conn, handshakeReadTimeout)
	if err != nil {
		return Secured{}, fmt.Errorf("read peer ephemeral pub: %w", err)
	}
	peerPub, err := curve.NewPublicKey(peerBytes)
	if err != nil {
		return Secured{}, fmt.Errorf("parse peer ephemeral pub: %w", err)
	}

	shared, err := ephemeral.ECDH(peerPub)
	if err != nil {
		return Secured{}, fmt.Errorf("ecdh: %w", err)
	}
	key, err := deriveKey(shared)
	if err != nil {
		return Secured{}, err
	}

	h := transcriptHash(shared, id.Public)
	sig := ed25519.Sign(id.Private, h)
	if err := writeLenPrefixed(conn, sig); err != nil {
		return Secured{}, fmt.Errorf("send signature: %w", err)
	}

	aead, err := NewAEAD(key)
	if err != nil {
		return Secured{}, err
	}
	secured := Secured{aead: aead}

	sess := NewSession(conn, secured, handshakeReadTimeout)
	var req pskRequest
	if err := sess.Recv(&req); err != nil {
		return Secured{}, fmt.Errorf("read ship psk: %w", err)
	}
	ok := verifyPSK(req.ShipID, req.PSK)
	if err := sess.Send(&pskResponse{OK: ok}); err != nil {
		return Secured{}, fmt.Errorf("send psk response: %w", err)
	}
	if !ok {
		return Secured{}, ErrPSKRejected
	}
	return secured, nil
}

// TrustPredicate decides whether a peer's advertised host key should be
// trusted, given the peer's IP and the raw key bytes. Trust-on-first-use
// stores are implemented by the caller (see HostTrustStore).
type TrustPredicate func(peerIP string, hostKey []byte) bool

// ClientHandshake performs the client role (§4.1), then presents shipID
// and psk to the server's VerifyPSK before the caller is handed a usable
// Secured channel.
func ClientHandshake(conn net.Conn, trust TrustPredicate, shipID uint32, psk string) (Secured, error) {
	peerIP, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	hostKeyBytes, err := readLenPrefixedDeadline(conn, handshakeReadTimeout)
	if err != nil {
		return Secured{}, fmt.Errorf("read hostkey: %w", err)
	}
	if !trust(peerIP, hostKeyBytes) {
		return Secured{}, ErrUnknownHostkey
	}
	hostPub := ed25519.PublicKey(hostKeyBytes)

	peerEphemeralBytes, err := readLenPrefixedDeadline(conn, handshakeReadTimeout)
	if err != nil {
		return Secured{}, fmt.Errorf("read server ephemeral pub: %w", err)
	}

	curve := ecdh.P256()
	ephemeral, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return Secured{}, fmt.Errorf("generate ephemeral key: %w", err)
	}
	if err := writeLenPrefixed(conn, ephemeral.PublicKey().Bytes()); err != nil {
		return Secured{}, fmt.Errorf("send ephemeral pub: %w", err)
	}

	peerPub, err := curve.NewPublicKey(peerEphemeralBytes)
	if err != nil {
		return Secured{}, fmt.Errorf("parse server ephemeral pub: %w", err)
	}
	shared, err := ephemeral.ECDH(peerPub)
	if err != nil {
		return Secured{}, fmt.Errorf("ecdh: %w", err)
	}
	key, err := deriveKey(shared)
	if err != nil {
		return Secured{}, err
	}

	sig, err := readLenPrefixedDeadline(conn, handshakeReadTimeout)
	if err != nil {
		return Secured{}, fmt.Errorf("read signature: %w", err)
	}
	h := transcriptHash(shared, hostPub)
	if !ed25519.Verify(hostPub, h, sig) {
		return Secured{}, fmt.Errorf("handshake signature verification failed")
	}

	aead, err := NewAEAD(key)
	if err != nil {
		return Secured{}, err
	}
	secured := Secured{aead: aead}

	sess := NewSession(conn, secured, handshakeReadTimeout)
	if err := sess.Send(&pskRequest{ShipID: shipID, PSK: psk}); err != nil {
		return Secured{}, fmt.Errorf("send ship psk: %w", err)
	}
	var resp pskResponse
	if err := sess.Recv(&resp); err != nil {
		return Secured{}, fmt.Errorf("read psk response: %w", err)
	}
	if !resp.OK {
		return Secured{}, ErrPSKRejected
	}
	return secured, nil
}

func transcriptHash(shared, hostPub []byte) []byte {
	sum := sha256.Sum256(append(append([]byte{}, shared...), hostPub...))
	return sum[:]
}

func deriveKey(shared []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, shared, nil, nil)
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf derive: %w", err)
	}
	return key, nil
}

func writeLenPrefixed(w io.Writer, data []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readLenPrefixedDeadline(conn net.Conn, timeout time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	defer conn.SetReadDeadline(time.Time{})

	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > 1<<20 {
		return nil, fmt.Errorf("handshake field too large: %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
