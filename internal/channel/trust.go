package channel

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
)

// HostTrustStore implements trust-on-first-use: the first host key seen for
// a given IPv4 address is recorded and trusted forever after; a later,
// different key for the same address is rejected. Backed by an append-only
// flat file, matching the "append-only mapping IPv4 → last-seen-key" shape
// spec.md's External Interfaces section calls for.
type HostTrustStore struct {
	mu    sync.Mutex
	path  string
	known map[string]string // ip -> hex-encoded key
}

func LoadHostTrustStore(path string) (*HostTrustStore, error) {
	s := &HostTrustStore{path: path, known: make(map[string]string)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open trust store %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		s.known[parts[0]] = parts[1]
	}
	return s, scanner.Err()
}

// Predicate returns a TrustPredicate backed by this store, recording any
// never-before-seen IP on first contact.
func (s *HostTrustStore) Predicate() TrustPredicate {
	return func(peerIP string, hostKey []byte) bool {
		s.mu.Lock()
		defer s.mu.Unlock()

		encoded := hex.EncodeToString(hostKey)
		if existing, ok := s.known[peerIP]; ok {
			return existing == encoded
		}
		s.known[peerIP] = encoded
		_ = s.append(peerIP, encoded)
		return true
	}
}

func (s *HostTrustStore) append(ip, hexKey string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open trust store for append: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s %s\n", ip, hexKey)
	return err
}
