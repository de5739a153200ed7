// Package ratings maintains per-politician approval ratings partitioned by
// party and by whether the rater lives in the official's district. A
// citizen's score lives in exactly one (party, residency) bucket per
// politician; when the citizen's party or address changes, the relocation
// routines move the score rather than duplicating it.
//
// Bucket moves are multi-step and not transactional: a concurrent reader can
// observe the score mid-move. Accepted limitation.
package ratings

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/civicmesh/civic-broker/pkg/errors"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

// DivisionLookup reports which division a politician holds office in.
// Implemented by the entity resolver.
type DivisionLookup interface {
	DivisionOf(ctx context.Context, politicianID string) (string, error)
}

// Service is the rating aggregator.
type Service struct {
	kv        store.KV
	divisions DivisionLookup
	logger    *slog.Logger
}

// New creates a rating aggregator.
func New(kv store.KV, divisions DivisionLookup) *Service {
	return &Service{
		kv:        kv,
		divisions: divisions,
		logger:    slog.Default().With("component", "ratings"),
	}
}

// PartySummary is the aggregate for one (party, residency) bucket.
type PartySummary struct {
	Rating float64 `json:"rating"`
	Total  int64   `json:"total"`
}

// Summary reports per-party aggregates for residents and non-residents, plus
// the caller's own score when a caller is known.
type Summary struct {
	Resident map[identity.Party]PartySummary `json:"resident"`
	Outsider map[identity.Party]PartySummary `json:"outsider"`
	User     float64                         `json:"user,omitempty"`
}

// Get aggregates the rating buckets for a politician. callerID may be empty;
// when present the caller's own score is included, looked up in the resident
// bucket for the caller's party first, then the outsider bucket, 0 if absent.
func (s *Service) Get(ctx context.Context, politicianID, callerID string) (Summary, error) {
	summary := Summary{
		Resident: make(map[identity.Party]PartySummary, len(identity.Parties)),
		Outsider: make(map[identity.Party]PartySummary, len(identity.Parties)),
	}

	for _, party := range identity.Parties {
		for _, resident := range []bool{true, false} {
			agg, err := s.aggregateBucket(ctx, identity.RatingKey(politicianID, party, resident))
			if err != nil {
				return summary, err
			}
			if resident {
				summary.Resident[party] = agg
			} else {
				summary.Outsider[party] = agg
			}
		}
	}

	if callerID != "" {
		score, err := s.callerScore(ctx, politicianID, callerID)
		if err != nil {
			return summary, err
		}
		summary.User = score
	}
	return summary, nil
}

// aggregateBucket counts members at each star level and computes the mean.
func (s *Service) aggregateBucket(ctx context.Context, key string) (PartySummary, error) {
	var total, weighted int64
	for star := int64(1); star <= 5; star++ {
		count, err := s.kv.ZCount(ctx, key, float64(star), float64(star))
		if err != nil {
			return PartySummary{}, fmt.Errorf("counting bucket %s: %w", key, err)
		}
		total += count
		weighted += star * count
	}
	if total == 0 {
		return PartySummary{}, nil
	}
	return PartySummary{
		Rating: float64(weighted) / float64(total),
		Total:  total,
	}, nil
}

func (s *Service) callerScore(ctx context.Context, politicianID, callerID string) (float64, error) {
	party, err := s.UserParty(ctx, callerID)
	if err != nil {
		return 0, err
	}
	score, found, err := s.kv.ZScore(ctx, identity.RatingKey(politicianID, party, true), callerID)
	if err != nil {
		return 0, err
	}
	if found {
		return score, nil
	}
	score, found, err = s.kv.ZScore(ctx, identity.RatingKey(politicianID, party, false), callerID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return score, nil
}

// UserParty returns the caller's recorded party, defaulting to Independent.
func (s *Service) UserParty(ctx context.Context, callerID string) (identity.Party, error) {
	code, err := s.kv.HGet(ctx, identity.UserKey(callerID), "party")
	if err != nil {
		return identity.PartyIndependent, fmt.Errorf("loading user party: %w", err)
	}
	if code == "" {
		return identity.PartyIndependent, nil
	}
	return identity.ParseParty(code), nil
}

// ResidesInDistrict reports whether the caller's division memberships
// include the politician's division. Residency is exact division membership,
// never geographic distance.
func (s *Service) ResidesInDistrict(ctx context.Context, politicianID, callerID string) (bool, error) {
	divisionID, err := s.divisions.DivisionOf(ctx, politicianID)
	if err != nil {
		return false, err
	}
	if divisionID == "" {
		return false, nil
	}
	return s.kv.SIsMember(ctx, identity.UserDivisionsKey(callerID), divisionID)
}

// Rate writes the caller's score into the bucket selected by party and
// residency, remembering the politician in the caller's rated set. A zero
// score degenerates into a read. Rate never cleans up buckets the caller may
// occupy from an earlier party or address; the relocation routines own that.
func (s *Service) Rate(ctx context.Context, politicianID, callerID string, score int, party identity.Party, resident bool) (Summary, error) {
	if politicianID == "" || callerID == "" {
		return Summary{}, apperrors.New(apperrors.ErrInvalidInput, 400, "politician id and caller id are required")
	}
	if score != 0 {
		if score < 1 || score > 5 {
			return Summary{}, apperrors.New(apperrors.ErrInvalidInput, 400, "rating must be between 1 and 5")
		}
		if err := s.kv.SAdd(ctx, identity.UserRatingsKey(callerID), politicianID); err != nil {
			return Summary{}, fmt.Errorf("tracking rated politician: %w", err)
		}
		key := identity.RatingKey(politicianID, party, resident)
		if err := s.kv.ZAdd(ctx, key, callerID, float64(score)); err != nil {
			return Summary{}, fmt.Errorf("writing rating: %w", err)
		}
		s.logger.Debug("rating cast",
			"politician_id", politicianID,
			"party", party,
			"resident", resident,
		)
	}
	return s.Get(ctx, politicianID, callerID)
}

// RelocateOnPartyChange moves the caller's scores from the old party's
// buckets to the new party's, both residencies, for every politician the
// caller has rated. It must run before any other bucket mutation from the
// same profile update so a score never straddles two party buckets. Each
// move is two store calls; a failure aborts remaining moves and leaves
// completed ones in place.
func (s *Service) RelocateOnPartyChange(ctx context.Context, callerID string, oldParty, newParty identity.Party) error {
	rated, err := s.kv.SMembers(ctx, identity.UserRatingsKey(callerID))
	if err != nil {
		return fmt.Errorf("loading rated politicians: %w", err)
	}
	for _, politicianID := range rated {
		for _, resident := range []bool{true, false} {
			from := identity.RatingKey(politicianID, oldParty, resident)
			to := identity.RatingKey(politicianID, newParty, resident)
			if err := s.moveScore(ctx, from, to, callerID); err != nil {
				return err
			}
		}
	}
	return nil
}

// RelocateOnResidencyChange recomputes residency for every politician the
// caller has rated and moves the score between the resident and outsider
// buckets of the current party when it flipped.
func (s *Service) RelocateOnResidencyChange(ctx context.Context, callerID string, party identity.Party) error {
	rated, err := s.kv.SMembers(ctx, identity.UserRatingsKey(callerID))
	if err != nil {
		return fmt.Errorf("loading rated politicians: %w", err)
	}
	for _, politicianID := range rated {
		resident, err := s.ResidesInDistrict(ctx, politicianID, callerID)
		if err != nil {
			return err
		}
		from := identity.RatingKey(politicianID, party, !resident)
		to := identity.RatingKey(politicianID, party, resident)
		if err := s.moveScore(ctx, from, to, callerID); err != nil {
			return err
		}
	}
	return nil
}

// moveScore moves the caller's score between two buckets when present; a
// missing score is a no-op.
func (s *Service) moveScore(ctx context.Context, from, to, callerID string) error {
	score, found, err := s.kv.ZScore(ctx, from, callerID)
	if err != nil {
		return fmt.Errorf("reading score at %s: %w", from, err)
	}
	if !found {
		return nil
	}
	if err := s.kv.ZRem(ctx, from, callerID); err != nil {
		return fmt.Errorf("removing score at %s: %w", from, err)
	}
	if err := s.kv.ZAdd(ctx, to, callerID, score); err != nil {
		return fmt.Errorf("writing score at %s: %w", to, err)
	}
	return nil
}
