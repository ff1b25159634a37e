// Package serverkey loads the Nostr keypair the service signs challenge
// events with.
//
// The key comes from the environment (hex or nsec), from a key file, or
// is generated and persisted on first start when only a file path is
// configured.
package serverkey

import (
	"fmt"
	"os"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Config names where the server signing key comes from.
type Config struct {
	// PrivateKey is the key itself, as 64 hex characters or an nsec string.
	PrivateKey string `env:"NOSTR_AUTH_SERVER_KEY"`
	// KeyFile is a path holding the hex key; created on first start when
	// PrivateKey is empty.
	KeyFile string `env:"NOSTR_AUTH_KEY_FILE"`
}

// Identity is the loaded server keypair.
type Identity struct {
	secretKey string
	publicKey string
}

// Load resolves the server identity from config.
//
// PrivateKey wins over KeyFile. With neither set an ephemeral key is
// generated; issued challenges then do not survive a restart, which is
// fine for the memory storage backend this pairs with.
func Load(config Config) (*Identity, error) {
	switch {
	case strings.TrimSpace(config.PrivateKey) != "":
		return fromSecretKey(config.PrivateKey)
	case strings.TrimSpace(config.KeyFile) != "":
		return fromKeyFile(strings.TrimSpace(config.KeyFile))
	default:
		return Generate()
	}
}

// Generate creates a fresh random identity.
func Generate() (*Identity, error) {
	return fromSecretKey(nostr.GeneratePrivateKey())
}

func fromSecretKey(input string) (*Identity, error) {
	secretKey := strings.TrimSpace(input)
	if strings.HasPrefix(secretKey, "nsec1") {
		prefix, value, err := nip19.Decode(secretKey)
		if err != nil {
			return nil, fmt.Errorf("decode nsec key: %w", err)
		}
		if prefix != "nsec" {
			return nil, fmt.Errorf("unexpected key prefix %q", prefix)
		}
		secretKey = value.(string)
	}

	publicKey, err := nostr.GetPublicKey(secretKey)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	return &Identity{secretKey: secretKey, publicKey: publicKey}, nil
}

func fromKeyFile(path string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return fromSecretKey(string(raw))
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	identity, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(identity.secretKey+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return identity, nil
}

// PublicKey returns the server pubkey as hex.
func (i *Identity) PublicKey() string {
	return i.publicKey
}

// Npub returns the server pubkey in bech32 npub form.
func (i *Identity) Npub() (string, error) {
	return nip19.EncodePublicKey(i.publicKey)
}

// Nsec returns the secret key in bech32 nsec form.
func (i *Identity) Nsec() (string, error) {
	return nip19.EncodePrivateKey(i.secretKey)
}

// SecretKeyHex returns the secret key as hex, for key export tooling.
func (i *Identity) SecretKeyHex() string {
	return i.secretKey
}

// Sign signs evt with the server key, filling in its pubkey, id and sig.
func (i *Identity) Sign(evt *nostr.Event) error {
	if evt == nil {
		return fmt.Errorf("event is required")
	}
	if err := evt.Sign(i.secretKey); err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	return nil
}
