// Package resolver owns politician identities: ingestion of normalized
// provider records and on-read merging of all source records into one
// canonical profile.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
	"github.com/civicmesh/civic-broker/internal/civic/normalize"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

// sourcePriority is the fixed conflict-resolution order: the primary
// civic-info source wins, then the legislator directory, then manual
// imports. Sources outside the list sort after it by name.
var sourcePriority = []string{"civicinfo", "legisdir", "imported"}

// Indexer receives every ingested record for inverted-index maintenance.
type Indexer interface {
	IndexRecord(ctx context.Context, rec normalize.Record, politicianID, provenance string) error
}

// Warmer asks the image cache to pre-fetch a photo and store it under the
// given filename. Implementations must be fire-and-forget: never block the
// caller, never surface failures.
type Warmer interface {
	Warm(url, filename string)
}

// Config controls photo URL rewriting.
type Config struct {
	// PublicBase is the externally visible base URL of this service.
	PublicBase string
	// CacheEnabled turns on photo URL rewriting and cache warming.
	CacheEnabled bool
}

// Service is the entity resolver.
type Service struct {
	kv      store.KV
	indexer Indexer
	warmer  Warmer
	cfg     Config
	group   singleflight.Group
	logger  *slog.Logger
}

// New creates a resolver. warmer may be nil when no image cache is
// configured.
func New(kv store.KV, indexer Indexer, warmer Warmer, cfg Config) *Service {
	return &Service{
		kv:      kv,
		indexer: indexer,
		warmer:  warmer,
		cfg:     cfg,
		logger:  slog.Default().With("component", "resolver"),
	}
}

// Ingest normalizes a raw provider record, stores it under its source, links
// it to the identity and division, and feeds the inverted index. Re-ingesting
// identical input overwrites in place; a name or division change mints a new
// politician id and leaves the old records behind.
func (s *Service) Ingest(ctx context.Context, source string, raw normalize.RawRecord) (string, error) {
	rec, err := normalize.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("normalizing %s record: %w", source, err)
	}
	politicianID := rec[normalize.FieldID]

	if err := s.kv.HSet(ctx, identity.SourceKey(source, politicianID), rec); err != nil {
		return "", fmt.Errorf("storing source record: %w", err)
	}
	if err := s.kv.SAdd(ctx, identity.IdentityKey(politicianID), identity.SourceKey(source, politicianID)); err != nil {
		return "", fmt.Errorf("linking identity: %w", err)
	}
	if divisionID := rec[normalize.FieldDivisionID]; divisionID != "" {
		if err := s.kv.SAdd(ctx, identity.DivisionPoliticiansKey(divisionID), politicianID); err != nil {
			return "", fmt.Errorf("linking division: %w", err)
		}
	}
	if div := raw.Division; div != nil && div.ID != "" {
		fields := map[string]string{"name": div.Name, "scope": div.Scope, "state": div.State}
		for f, v := range fields {
			if v == "" {
				delete(fields, f)
			}
		}
		if err := s.kv.HSet(ctx, identity.DivisionKey(div.ID), fields); err != nil {
			return "", fmt.Errorf("storing division: %w", err)
		}
	}
	if err := s.indexer.IndexRecord(ctx, rec, politicianID, source); err != nil {
		return "", fmt.Errorf("indexing record: %w", err)
	}

	s.logger.Debug("record ingested", "source", source, "politician_id", politicianID)
	return politicianID, nil
}

// Resolve merges all source records for an identity into a canonical
// profile. An unknown identity yields an empty profile, not an error.
// Concurrent resolves of the same identity share one store round-trip.
func (s *Service) Resolve(ctx context.Context, politicianID string) (Profile, error) {
	v, err, _ := s.group.Do(politicianID, func() (any, error) {
		return s.resolve(ctx, politicianID)
	})
	if err != nil {
		return Profile{}, err
	}
	return v.(Profile), nil
}

func (s *Service) resolve(ctx context.Context, politicianID string) (Profile, error) {
	sources, err := s.loadSources(ctx, politicianID)
	if err != nil {
		return Profile{}, err
	}
	if len(sources) == 0 {
		return Profile{ID: politicianID, DataSources: []DataSource{}}, nil
	}

	merged := mergeByPriority(sources)
	profile := profileFromRecord(politicianID, merged)
	profile.DataSources = attributions(sources)
	profile.ExternalLinks = externalLinks(merged)
	s.applyPhotoCache(&profile)
	return profile, nil
}

// DivisionOf returns the merged division id for an identity, or "" when
// unknown. Ratings use it for residency checks.
func (s *Service) DivisionOf(ctx context.Context, politicianID string) (string, error) {
	sources, err := s.loadSources(ctx, politicianID)
	if err != nil {
		return "", err
	}
	merged := mergeByPriority(sources)
	return merged[normalize.FieldDivisionID], nil
}

// loadSources loads every source record linked to the identity.
func (s *Service) loadSources(ctx context.Context, politicianID string) (map[string]normalize.Record, error) {
	refs, err := s.kv.SMembers(ctx, identity.IdentityKey(politicianID))
	if err != nil {
		return nil, fmt.Errorf("loading identity refs: %w", err)
	}
	sources := make(map[string]normalize.Record, len(refs))
	for _, ref := range refs {
		source, _, ok := strings.Cut(ref, ":")
		if !ok {
			continue
		}
		rec, err := s.kv.HGetAll(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("loading source record %s: %w", ref, err)
		}
		if len(rec) > 0 {
			sources[source] = normalize.Record(rec)
		}
	}
	return sources, nil
}

// applyPhotoCache rewrites the photo URL to the cache-relative form and
// warms the cache. The warm is fire-and-forget; the profile never waits on
// it.
func (s *Service) applyPhotoCache(profile *Profile) {
	if !s.cfg.CacheEnabled || profile.PhotoURL == "" {
		return
	}
	sourceURL := profile.PhotoURL
	ext := sourceURL
	if idx := strings.LastIndex(sourceURL, "."); idx >= 0 {
		ext = sourceURL[idx+1:]
	}
	profile.PhotoURL = s.cfg.PublicBase + "/images/" + profile.ID + "." + ext
	if s.warmer != nil {
		s.warmer.Warm(sourceURL, profile.ID+"."+ext)
	}
}

// mergeByPriority collapses source records field by field: the first source
// in priority order with a non-empty value wins.
func mergeByPriority(sources map[string]normalize.Record) normalize.Record {
	merged := make(normalize.Record)
	for _, source := range orderedSources(sources) {
		for field, value := range sources[source] {
			if value == "" {
				continue
			}
			if _, present := merged[field]; !present {
				merged[field] = value
			}
		}
	}
	return merged
}

// orderedSources returns source names in priority order, unknown sources
// after the fixed list sorted by name.
func orderedSources(sources map[string]normalize.Record) []string {
	ranked := make([]string, 0, len(sources))
	known := make(map[string]struct{}, len(sourcePriority))
	for _, source := range sourcePriority {
		known[source] = struct{}{}
		if _, ok := sources[source]; ok {
			ranked = append(ranked, source)
		}
	}
	var rest []string
	for source := range sources {
		if _, ok := known[source]; !ok {
			rest = append(rest, source)
		}
	}
	sort.Strings(rest)
	return append(ranked, rest...)
}
