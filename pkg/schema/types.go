package schema

import (
	"context"
	"fmt"
	"time"
)

// SchemaType represents the format of a registered schema
type SchemaType string

const (
	SchemaTypeAvro SchemaType = "AVRO"
)

// SchemaMetadata contains metadata about a registered schema
type SchemaMetadata struct {
	ID         int        `json:"id"`
	Version    int        `json:"version"`
	Schema     string     `json:"schema"`
	Subject    string     `json:"subject"`
	SchemaType SchemaType `json:"schemaType"`
}

// RegistryClient is the subset of schema registry operations the feature
// store needs
type RegistryClient interface {
	// GetSchema retrieves a schema by ID
	GetSchema(ctx context.Context, schemaID int) (*SchemaMetadata, error)

	// GetLatestSchema retrieves the latest version of a schema for a subject
	GetLatestSchema(ctx context.Context, subject string) (*SchemaMetadata, error)

	// RegisterSchema registers a new schema or returns the existing one if identical
	RegisterSchema(ctx context.Context, subject string, schema string, schemaType SchemaType) (*SchemaMetadata, error)

	// Close closes the registry client
	Close() error
}

// Config contains configuration for schema registry integration
type Config struct {
	// RegistryURL is the URL of the schema registry
	RegistryURL string `json:"registry_url" yaml:"registry_url"`

	// Username for basic auth (optional)
	Username string `json:"username,omitempty" yaml:"username,omitempty"`

	// Password for basic auth (optional)
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// Timeout for registry operations
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// CacheEnabled enables local schema caching
	CacheEnabled bool `json:"cache_enabled" yaml:"cache_enabled"`

	// CacheSize is the maximum number of schemas to cache
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// CacheTTL is the time-to-live for cached schemas
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// TLSEnabled enables TLS for registry connections
	TLSEnabled bool `json:"tls_enabled" yaml:"tls_enabled"`

	// TLSCertPath is the path to the TLS certificate
	TLSCertPath string `json:"tls_cert_path,omitempty" yaml:"tls_cert_path,omitempty"`

	// TLSKeyPath is the path to the TLS key
	TLSKeyPath string `json:"tls_key_path,omitempty" yaml:"tls_key_path,omitempty"`

	// TLSCAPath is the path to the CA certificate
	TLSCAPath string `json:"tls_ca_path,omitempty" yaml:"tls_ca_path,omitempty"`

	// TLSSkipVerify skips TLS certificate verification (not recommended)
	TLSSkipVerify bool `json:"tls_skip_verify" yaml:"tls_skip_verify"`
}

// ValidationError reports a row that does not match its feature group
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Value != nil {
		return fmt.Sprintf("%s: %s (value: %v)", v.Field, v.Message, v.Value)
	}
	return v.Field + ": " + v.Message
}
