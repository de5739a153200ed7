// Package profile maintains citizen profiles: party affiliation, home
// address and coordinates, and division memberships. Profile changes trigger
// the rating relocations that keep a citizen's scores in the right buckets.
package profile

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	apperrors "github.com/civicmesh/civic-broker/pkg/errors"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
	"github.com/civicmesh/civic-broker/internal/civic/ratings"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

// Identity is the token-identity handed in by the shell: an opaque caller id
// plus whatever the identity provider knows about the caller.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// UpdateRequest is a citizen profile change. Divisions are supplied by the
// shell's geocoding collaborator; the core never geocodes.
type UpdateRequest struct {
	Party     string   `json:"party,omitempty"`
	Address   string   `json:"address,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Divisions []string `json:"divisions,omitempty"`
}

// Service owns citizen profile state.
type Service struct {
	kv      store.KV
	ratings *ratings.Service
	logger  *slog.Logger
}

// New creates a profile service.
func New(kv store.KV, ratingsSvc *ratings.Service) *Service {
	return &Service{
		kv:      kv,
		ratings: ratingsSvc,
		logger:  slog.Default().With("component", "profile"),
	}
}

// Info refreshes the stored profile from the token identity and returns the
// full profile hash.
func (s *Service) Info(ctx context.Context, ident Identity) (map[string]string, error) {
	fields := map[string]string{}
	if ident.Name != "" {
		fields["name"] = ident.Name
	}
	if ident.Email != "" {
		fields["email"] = ident.Email
	}
	if ident.Avatar != "" {
		fields["avatar"] = ident.Avatar
	}
	if err := s.kv.HSet(ctx, identity.UserKey(ident.ID), fields); err != nil {
		return nil, err
	}
	return s.kv.HGetAll(ctx, identity.UserKey(ident.ID))
}

// Divisions returns the citizen's division memberships.
func (s *Service) Divisions(ctx context.Context, callerID string) ([]string, error) {
	return s.kv.SMembers(ctx, identity.UserDivisionsKey(callerID))
}

// Update applies a profile change. A party change relocates the caller's
// scores between party buckets before anything else touches them; an address
// change replaces the division memberships and then relocates scores between
// residency buckets. The steps are not transactional: a failure aborts the
// remaining steps and leaves the completed ones in place, and a concurrent
// reader can observe the intermediate state.
func (s *Service) Update(ctx context.Context, callerID string, req UpdateRequest) error {
	if err := s.applyPartyChange(ctx, callerID, req.Party); err != nil {
		return err
	}
	return s.applyAddressChange(ctx, callerID, req)
}

func (s *Service) applyPartyChange(ctx context.Context, callerID, newParty string) error {
	if newParty == "" {
		return nil
	}
	stored, err := s.kv.HGet(ctx, identity.UserKey(callerID), "party")
	if err != nil {
		return err
	}
	if stored == newParty {
		return nil
	}
	// A caller with no recorded party has been rating as an Independent.
	oldParty := identity.PartyIndependent
	if stored != "" {
		oldParty = identity.ParseParty(stored)
	}
	target := identity.ParseParty(newParty)

	if err := s.kv.HSet(ctx, identity.UserKey(callerID), map[string]string{"party": string(target)}); err != nil {
		return err
	}
	if err := s.ratings.RelocateOnPartyChange(ctx, callerID, oldParty, target); err != nil {
		return err
	}
	s.logger.Info("party updated", "old", oldParty, "new", target)
	return nil
}

func (s *Service) applyAddressChange(ctx context.Context, callerID string, req UpdateRequest) error {
	if req.Address == "" {
		return nil
	}
	stored, err := s.kv.HGet(ctx, identity.UserKey(callerID), "home_address")
	if err != nil {
		return err
	}
	if stored == req.Address {
		return nil
	}
	if !validCoordinates(req.Lat, req.Lng) {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "invalid coordinates")
	}

	if err := s.kv.HSet(ctx, identity.UserKey(callerID), map[string]string{
		"home_address": req.Address,
		"home_lat":     formatCoord(*req.Lat),
		"home_lng":     formatCoord(*req.Lng),
	}); err != nil {
		return err
	}

	// Replace division memberships wholesale.
	if err := s.kv.Del(ctx, identity.UserDivisionsKey(callerID)); err != nil {
		return err
	}
	if len(req.Divisions) > 0 {
		if err := s.kv.SAdd(ctx, identity.UserDivisionsKey(callerID), req.Divisions...); err != nil {
			return err
		}
	}

	party, err := s.ratings.UserParty(ctx, callerID)
	if err != nil {
		return err
	}
	if err := s.ratings.RelocateOnResidencyChange(ctx, callerID, party); err != nil {
		return err
	}
	s.logger.Info("address updated", "divisions", len(req.Divisions))
	return nil
}

func validCoordinates(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	if math.IsNaN(*lat) || math.IsNaN(*lng) || math.IsInf(*lat, 0) || math.IsInf(*lng, 0) {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lng >= -180 && *lng <= 180
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
