package pager

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ───────────────────────────────────────────────────────────────────────────
// Resource configuration
// ───────────────────────────────────────────────────────────────────────────
//
// ResourceConfig is the YAML sidecar (config.yaml, sitting next to
// resource.db) that records the per-resource settings a reader needs but
// cannot infer from the uber page alone: the versioning policy, which
// decides how many fragments a record-page reconstruction loads
// (versionpolicy.go's revisionRoots), the fragment-chain ceiling, and cache
// sizing overrides.

// ResourceConfig holds the parsed contents of a resource's config.yaml.
type ResourceConfig struct {
	VersioningPolicy   string        `yaml:"versioningPolicy"`
	PageSize           int           `yaml:"pageSize"`
	BufferManagerPages int           `yaml:"bufferManagerPages"`
	TxCacheEntries     int           `yaml:"txCacheEntries"`
	TxCacheTTL         time.Duration `yaml:"txCacheTTL"`
	SweepSchedule      string        `yaml:"sweepSchedule"`

	// RevisionsToRestore bounds how many on-disk fragments a single record
	// page reconstruction may walk before giving up (spec §6). A corrupt
	// cyclic chain still terminates; a resource configured for a deep
	// incremental/sliding-snapshot chain can raise this past the default.
	RevisionsToRestore int `yaml:"revisionsToRestore"`
}

// DefaultResourceConfig returns the configuration used when a resource has
// no config.yaml of its own.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		VersioningPolicy:   VersioningFull.String(),
		PageSize:           DefaultPageSize,
		BufferManagerPages: 1024,
		TxCacheEntries:     256,
		TxCacheTTL:         30 * time.Second,
		SweepSchedule:      "*/1 * * * *",
		RevisionsToRestore: 256,
	}
}

// LoadResourceConfig reads and parses a resource's config.yaml. A missing
// file is not an error: DefaultResourceConfig is returned instead.
func LoadResourceConfig(path string) (ResourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultResourceConfig(), nil
		}
		return ResourceConfig{}, fmt.Errorf("read resource config: %w", err)
	}

	cfg := DefaultResourceConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ResourceConfig{}, fmt.Errorf("parse resource config: %w", err)
	}
	return cfg, nil
}

// ParsedVersioningPolicy parses the configured policy name, defaulting to
// VersioningFull for an empty or unrecognized value.
func (rc ResourceConfig) ParsedVersioningPolicy() VersioningPolicy {
	switch rc.VersioningPolicy {
	case "differential":
		return VersioningDifferential
	case "incremental":
		return VersioningIncremental
	case "sliding-snapshot":
		return VersioningSlidingSnapshot
	default:
		return VersioningFull
	}
}
