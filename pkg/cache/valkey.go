package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyConfig holds Valkey connection configuration.
type ValkeyConfig struct {
	InitAddress string
	Password    string
	TLS         bool
}

const (
	valkeyRetries    = 3
	valkeyRetryDelay = 250 * time.Millisecond
)

// NewValkeyClient connects to Valkey and verifies the connection with a PING.
func NewValkeyClient(ctx context.Context, cfg ValkeyConfig) (valkey.Client, error) {
	if cfg.InitAddress == "" {
		return nil, ErrEmptyAddress
	}

	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.InitAddress},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyStore] failed to create client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyStore] failed to ping: %w", err)
	}

	return client, nil
}

// ValkeyStore keeps entries in Valkey under a key prefix. Transient command
// failures are retried.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	logger *slog.Logger
}

// NewValkeyStore creates a store over client. prefix namespaces every key.
func NewValkeyStore(client valkey.Client, prefix string, logger *slog.Logger) *ValkeyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValkeyStore{client: client, prefix: prefix, logger: logger}
}

func (v *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	res := v.doWithRetry(ctx, v.client.B().Get().Key(v.prefix+key).Build())
	b, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (v *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := v.client.B().Set().
		Key(v.prefix + key).
		Value(valkey.BinaryString(value)).
		PxMilliseconds(ttl.Milliseconds()).
		Build()
	return v.doWithRetry(ctx, cmd).Error()
}

func (v *ValkeyStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		entry, err := v.doWithRetry(ctx, v.client.B().Scan().Cursor(cursor).Match(v.prefix+"*").Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return fmt.Errorf("scan keys: %w", err)
		}
		if len(entry.Elements) > 0 {
			if err := v.doWithRetry(ctx, v.client.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return fmt.Errorf("delete keys: %w", err)
			}
		}
		if entry.Cursor == 0 {
			return nil
		}
		cursor = entry.Cursor
	}
}

// Close releases the underlying client.
func (v *ValkeyStore) Close() {
	v.client.Close()
}

func (v *ValkeyStore) doWithRetry(ctx context.Context, cmd valkey.Completed) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < valkeyRetries; i++ {
		result = v.client.Do(ctx, cmd)
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) || !isConnectionError(err) {
			break
		}

		v.logger.Warn("[ValkeyStore] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return result
		case <-time.After(valkeyRetryDelay):
		}
	}
	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
