package channel

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
)

// LoadOrCreateHostIdentity reads a hex-encoded ed25519 private key from
// path, or generates and persists a fresh one if the file does not exist
// yet — matching HostTrustStore's tolerant-of-missing-file flat-file
// style so the master's identity survives restarts without a database
// round-trip.
func LoadOrCreateHostIdentity(path string) (*HostIdentity, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		id, genErr := GenerateHostIdentity()
		if genErr != nil {
			return nil, genErr
		}
		if saveErr := saveHostIdentity(path, id); saveErr != nil {
			return nil, saveErr
		}
		return id, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read host identity %s: %w", path, err)
	}

	seed, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode host identity %s: %w", path, err)
	}
	return identityFromSeed(seed)
}

func saveHostIdentity(path string, id *HostIdentity) error {
	seed := id.Private.Seed()
	return os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0o600)
}

func identityFromSeed(seed []byte) (*HostIdentity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("host identity seed has wrong length: got %d, want %d", len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &HostIdentity{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}
