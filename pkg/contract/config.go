package contract

import (
	"fmt"
	"time"

	"github.com/kumarabd/ingestion-plane/logcontract/pkg/conformance"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/ingest"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/roundtrip"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/schema"
)

// Config selects the schema generation and the behavior of each check
type Config struct {
	Generation            string              `json:"generation" yaml:"generation" default:"naive"`
	DisallowUnknownFields bool                `json:"disallow_unknown_fields" yaml:"disallow_unknown_fields" default:"false"`
	Workers               int                 `json:"workers" yaml:"workers" default:"4"` // 0 uses GOMAXPROCS
	CacheTTL              time.Duration       `json:"cache_ttl" yaml:"cache_ttl" default:"5m"`
	Ingest                *ingest.Config      `json:"ingest" yaml:"ingest"`
	Validation            *conformance.Config `json:"validation" yaml:"validation"`
	RoundTrip             *roundtrip.Config   `json:"roundtrip" yaml:"roundtrip"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		Generation: schema.GenerationNaive.Name,
		Workers:    4,
		CacheTTL:   5 * time.Minute,
		Ingest: &ingest.Config{
			Policy:       ingest.PolicyStrict,
			ValidateUTF8: true,
			MaxLineBytes: 1048576, // 1MB
		},
		Validation: &conformance.Config{},
		RoundTrip:  &roundtrip.Config{},
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if _, err := schema.LookupGeneration(c.Generation); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL)
	}
	if c.Ingest == nil {
		return fmt.Errorf("ingest config cannot be nil")
	}
	if err := c.Ingest.Validate(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}
