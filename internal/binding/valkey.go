package binding

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/teemow/cloudmailbot/internal/config"
)

// ValkeyStore keeps bindings as plain string keys "<prefix>binding:<userID>".
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore connects to the server in cfg.
func NewValkeyStore(cfg config.ValkeyConfig) (*ValkeyStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("valkey url is required")
	}
	opts := valkey.ClientOption{
		InitAddress:  []string{cfg.URL},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to valkey: %w", err)
	}
	return &ValkeyStore{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *ValkeyStore) key(userID string) string {
	return s.prefix + "binding:" + userID
}

func (s *ValkeyStore) Get(ctx context.Context, userID string) (string, bool, error) {
	email, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(userID)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting binding: %w", err)
	}
	return email, true, nil
}

func (s *ValkeyStore) Set(ctx context.Context, userID, email string) error {
	if err := s.client.Do(ctx, s.client.B().Set().Key(s.key(userID)).Value(email).Build()).Error(); err != nil {
		return fmt.Errorf("setting binding: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Remove(ctx context.Context, userID string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(userID)).Build()).Error(); err != nil {
		return fmt.Errorf("removing binding: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
