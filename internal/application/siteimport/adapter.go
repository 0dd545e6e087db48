package siteimport

import (
	"context"
	"fmt"
	"sort"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

// RawRecord is a record as delivered by a source platform, before
// normalization.
type RawRecord interface {
	SourceID() string
}

// RecordStream is a finite, non-restartable sequence of source records.
// Next returns io.EOF once the stream is exhausted. After any other error
// Next may be called again and resumes after the last delivered record.
type RecordStream interface {
	Next(ctx context.Context) (RawRecord, error)
	Close() error
}

// Adapter fetches and normalizes historical data from one source platform.
type Adapter interface {
	Platform() domain.Platform
	ValidateSource(sourceRef string) error
	FetchRecords(ctx context.Context, job domain.ImportJob) (RecordStream, error)
	Normalize(raw RawRecord) (domain.CanonicalEvent, error)
}

type AdapterRegistry struct {
	adapters map[domain.Platform]Adapter
}

func NewAdapterRegistry(adapters ...Adapter) *AdapterRegistry {
	r := &AdapterRegistry{adapters: make(map[domain.Platform]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		r.adapters[adapter.Platform()] = adapter
	}
	return r
}

func (r *AdapterRegistry) Lookup(platform domain.Platform) (Adapter, error) {
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
	}
	return adapter, nil
}

func (r *AdapterRegistry) Platforms() []domain.Platform {
	platforms := make([]domain.Platform, 0, len(r.adapters))
	for platform := range r.adapters {
		platforms = append(platforms, platform)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
