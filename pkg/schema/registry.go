package schema

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riferrei/srclient"
	"go.uber.org/zap"
)

// RegistryStats counts registry traffic of one client
type RegistryStats struct {
	Requests    int64
	Errors      int64
	CacheHits   int64
	CacheMisses int64
}

// schemaRegistry implements RegistryClient on top of a Confluent compatible
// registry. Writer schemas are cached by id since decoding a topic looks the
// same few ids up for every message.
type schemaRegistry struct {
	client *srclient.SchemaRegistryClient
	config Config
	logger *zap.Logger

	mu    sync.Mutex
	byID  map[int]cachedSchema
	clock func() time.Time

	requests, errors, hits, misses atomic.Int64
}

type cachedSchema struct {
	metadata  *SchemaMetadata
	expiresAt time.Time
}

// NewRegistryClient creates a new schema registry client
func NewRegistryClient(config *Config, logger *zap.Logger) (RegistryClient, error) {
	if config.RegistryURL == "" {
		return nil, errors.New("registry URL is required")
	}
	cfg := *config
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 1000
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.TLSEnabled {
		tlsConfig, err := tlsConfigFor(&cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}

	client := srclient.CreateSchemaRegistryClientWithOptions(cfg.RegistryURL, httpClient, 16)
	if cfg.Username != "" && cfg.Password != "" {
		client.SetCredentials(cfg.Username, cfg.Password)
	}

	logger.Info("Schema registry client initialized",
		zap.String("url", cfg.RegistryURL),
		zap.Bool("cache_enabled", cfg.CacheEnabled),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	return newSchemaRegistry(client, cfg, logger), nil
}

func newSchemaRegistry(client *srclient.SchemaRegistryClient, cfg Config, logger *zap.Logger) *schemaRegistry {
	r := &schemaRegistry{
		client: client,
		config: cfg,
		logger: logger,
		clock:  time.Now,
	}
	if cfg.CacheEnabled {
		r.byID = make(map[int]cachedSchema, cfg.CacheSize)
	}
	return r
}

func tlsConfigFor(config *Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: config.TLSSkipVerify}

	if config.TLSCAPath != "" {
		pem, err := os.ReadFile(config.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificate found in %s", config.TLSCAPath)
		}
		tlsConfig.RootCAs = pool
	}

	if config.TLSCertPath != "" && config.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(config.TLSCertPath, config.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// GetSchema retrieves a writer schema by id
func (r *schemaRegistry) GetSchema(ctx context.Context, schemaID int) (*SchemaMetadata, error) {
	r.requests.Add(1)
	if md, ok := r.cached(schemaID); ok {
		return md, nil
	}

	s, err := r.client.GetSchema(schemaID)
	if err != nil {
		r.errors.Add(1)
		return nil, fmt.Errorf("failed to get schema %d: %w", schemaID, err)
	}

	md := &SchemaMetadata{
		ID:         schemaID,
		Version:    s.Version(),
		Schema:     s.Schema(),
		SchemaType: SchemaTypeAvro,
	}
	r.store(md)
	return md, nil
}

// GetLatestSchema retrieves the latest version of a schema for a subject
func (r *schemaRegistry) GetLatestSchema(ctx context.Context, subject string) (*SchemaMetadata, error) {
	r.requests.Add(1)

	s, err := r.client.GetLatestSchema(subject)
	if err != nil {
		r.errors.Add(1)
		return nil, fmt.Errorf("failed to get latest schema for subject %s: %w", subject, err)
	}

	md := &SchemaMetadata{
		ID:         s.ID(),
		Version:    s.Version(),
		Schema:     s.Schema(),
		Subject:    subject,
		SchemaType: SchemaTypeAvro,
	}
	r.store(md)
	return md, nil
}

// RegisterSchema registers an Avro schema, or returns the existing one if identical
func (r *schemaRegistry) RegisterSchema(ctx context.Context, subject string, schema string, schemaType SchemaType) (*SchemaMetadata, error) {
	if schemaType != SchemaTypeAvro {
		return nil, fmt.Errorf("unsupported schema type %s", schemaType)
	}
	r.requests.Add(1)

	s, err := r.client.CreateSchema(subject, schema, srclient.Avro)
	if err != nil {
		r.errors.Add(1)
		return nil, fmt.Errorf("failed to register schema for subject %s: %w", subject, err)
	}

	md := &SchemaMetadata{
		ID:         s.ID(),
		Version:    s.Version(),
		Schema:     schema,
		Subject:    subject,
		SchemaType: schemaType,
	}
	r.store(md)

	r.logger.Info("Schema registered",
		zap.String("subject", subject),
		zap.Int("id", md.ID),
		zap.Int("version", md.Version),
	)
	return md, nil
}

// Stats returns the traffic counters
func (r *schemaRegistry) Stats() RegistryStats {
	return RegistryStats{
		Requests:    r.requests.Load(),
		Errors:      r.errors.Load(),
		CacheHits:   r.hits.Load(),
		CacheMisses: r.misses.Load(),
	}
}

// Close logs the traffic counters; srclient holds no connections of its own
func (r *schemaRegistry) Close() error {
	stats := r.Stats()
	r.logger.Info("Closing schema registry client",
		zap.Int64("requests", stats.Requests),
		zap.Int64("errors", stats.Errors),
		zap.Int64("cache_hits", stats.CacheHits),
		zap.Int64("cache_misses", stats.CacheMisses),
	)
	return nil
}

// EnsureGroupSchema registers the Avro schema of a feature group under its subject
func EnsureGroupSchema(ctx context.Context, registry RegistryClient, group *FeatureGroup) (*SchemaMetadata, error) {
	return registry.RegisterSchema(ctx, group.Subject(), group.AvroSchema(), SchemaTypeAvro)
}

func (r *schemaRegistry) cached(id int) (*SchemaMetadata, bool) {
	if r.byID == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok || r.clock().After(c.expiresAt) {
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return c.metadata, true
}

// store caches md. When the cache is full, expired entries go first, then an
// arbitrary one.
func (r *schemaRegistry) store(md *SchemaMetadata) {
	if r.byID == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	if _, ok := r.byID[md.ID]; !ok && len(r.byID) >= r.config.CacheSize {
		for id, c := range r.byID {
			if now.After(c.expiresAt) {
				delete(r.byID, id)
			}
		}
		for id := range r.byID {
			if len(r.byID) < r.config.CacheSize {
				break
			}
			delete(r.byID, id)
		}
	}
	r.byID[md.ID] = cachedSchema{metadata: md, expiresAt: now.Add(r.config.CacheTTL)}
}
