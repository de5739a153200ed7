// Package civic composes the resolver, rating aggregator, search engine, and
// citizen profile service into the operations the API layer exposes.
package civic

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/civicmesh/civic-broker/pkg/errors"
	"github.com/civicmesh/civic-broker/pkg/metrics"

	"github.com/civicmesh/civic-broker/internal/civic/normalize"
	"github.com/civicmesh/civic-broker/internal/civic/profile"
	"github.com/civicmesh/civic-broker/internal/civic/ratings"
	"github.com/civicmesh/civic-broker/internal/civic/resolver"
	"github.com/civicmesh/civic-broker/internal/civic/search"
)

// Broker is the top-level domain service.
type Broker struct {
	Resolver *resolver.Service
	Ratings  *ratings.Service
	Search   *search.Engine
	Profile  *profile.Service

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New wires the domain services together. m may be nil, which disables
// instrumentation.
func New(res *resolver.Service, rat *ratings.Service, eng *search.Engine, prof *profile.Service, m *metrics.Metrics) *Broker {
	return &Broker{
		Resolver: res,
		Ratings:  rat,
		Search:   eng,
		Profile:  prof,
		metrics:  m,
		logger:   slog.Default().With("component", "broker"),
	}
}

// Ingest stores one raw provider record and returns the politician id it
// resolved to.
func (b *Broker) Ingest(ctx context.Context, source string, raw normalize.RawRecord) (string, error) {
	id, err := b.Resolver.Ingest(ctx, source, raw)
	if err != nil {
		return "", err
	}
	if b.metrics != nil {
		b.metrics.RecordsIngestedTotal.WithLabelValues(source).Inc()
	}
	return id, nil
}

// Politician resolves the canonical profile for an identity.
func (b *Broker) Politician(ctx context.Context, politicianID string) (resolver.Profile, error) {
	if b.metrics != nil {
		b.metrics.ResolvesTotal.Inc()
	}
	return b.Resolver.Resolve(ctx, politicianID)
}

// RatingsFor aggregates the rating buckets for a politician. callerID may be
// empty for anonymous reads.
func (b *Broker) RatingsFor(ctx context.Context, politicianID, callerID string) (ratings.Summary, error) {
	return b.Ratings.Get(ctx, politicianID, callerID)
}

// Rate casts the caller's score for a politician. The bucket is derived from
// the caller's recorded party and residency at cast time; a zero score reads
// without writing.
func (b *Broker) Rate(ctx context.Context, politicianID, callerID string, score int) (ratings.Summary, error) {
	party, err := b.Ratings.UserParty(ctx, callerID)
	if err != nil {
		return ratings.Summary{}, err
	}
	resident, err := b.Ratings.ResidesInDistrict(ctx, politicianID, callerID)
	if err != nil {
		return ratings.Summary{}, err
	}
	summary, err := b.Ratings.Rate(ctx, politicianID, callerID, score, party, resident)
	if err != nil {
		return ratings.Summary{}, err
	}
	if score != 0 && b.metrics != nil {
		residency := "outsider"
		if resident {
			residency = "resident"
		}
		b.metrics.RatingsCastTotal.WithLabelValues(string(party), residency).Inc()
	}
	return summary, nil
}

// SearchResult is one page of resolved search hits.
type SearchResult struct {
	Results []resolver.Profile `json:"results"`
	Pages   int                `json:"pages"`
}

// SearchProfiles answers a query and resolves the requested page of hits into
// full profiles.
func (b *Broker) SearchProfiles(ctx context.Context, query string, page int) (SearchResult, error) {
	start := time.Now()
	ids, pages, err := b.Search.Search(ctx, query, page)
	if err != nil {
		b.countSearch(err)
		return SearchResult{}, err
	}

	result := SearchResult{Results: make([]resolver.Profile, 0, len(ids)), Pages: pages}
	for _, id := range ids {
		prof, err := b.Resolver.Resolve(ctx, id)
		if err != nil {
			b.countSearch(err)
			return SearchResult{}, err
		}
		if prof.Empty() {
			continue
		}
		result.Results = append(result.Results, prof)
	}

	if b.metrics != nil {
		b.metrics.SearchLatency.Observe(time.Since(start).Seconds())
		b.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	}
	b.countSearch(nil)
	return result, nil
}

func (b *Broker) countSearch(err error) {
	if b.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, apperrors.ErrQueryTooLong), errors.Is(err, apperrors.ErrTooManyResults):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	b.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
}

// RepresentativesFor resolves and groups the office-holders for every
// division the caller belongs to.
func (b *Broker) RepresentativesFor(ctx context.Context, callerID string) (resolver.Representatives, error) {
	divisions, err := b.Profile.Divisions(ctx, callerID)
	if err != nil {
		return resolver.Representatives{}, err
	}
	return b.Resolver.Representatives(ctx, divisions)
}

// ProfileInfo refreshes and returns the caller's profile.
func (b *Broker) ProfileInfo(ctx context.Context, ident profile.Identity) (map[string]string, error) {
	return b.Profile.Info(ctx, ident)
}

// UpdateProfile applies a profile change, relocating rating scores as needed.
func (b *Broker) UpdateProfile(ctx context.Context, callerID string, req profile.UpdateRequest) error {
	if err := b.Profile.Update(ctx, callerID, req); err != nil {
		return err
	}
	if b.metrics != nil {
		if req.Party != "" {
			b.metrics.RelocationsTotal.WithLabelValues("party").Inc()
		}
		if req.Address != "" {
			b.metrics.RelocationsTotal.WithLabelValues("residency").Inc()
		}
	}
	return nil
}
