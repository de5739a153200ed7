package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
	"github.com/civicmesh/civic-broker/internal/civic/ratings"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

const (
	polID    = "pol-1"
	division = "ocd-division/country:us/state:ca/sldl:15"
)

type staticDivisions map[string]string

func (d staticDivisions) DivisionOf(ctx context.Context, politicianID string) (string, error) {
	return d[politicianID], nil
}

func newTestService(kv store.KV) *Service {
	rat := ratings.New(kv, staticDivisions{polID: division})
	return New(kv, rat)
}

func floatPtr(v float64) *float64 { return &v }

func TestInfoRefreshesIdentityFields(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	svc := newTestService(kv)

	require.NoError(t, kv.HSet(ctx, identity.UserKey("u1"), map[string]string{
		"party": "D",
		"name":  "Old Name",
	}))

	info, err := svc.Info(ctx, Identity{ID: "u1", Name: "New Name", Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", info["name"])
	assert.Equal(t, "new@example.com", info["email"])
	assert.Equal(t, "D", info["party"], "stored fields outside the token survive")
}

func TestUpdatePartyRelocatesScores(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	svc := newTestService(kv)
	rat := ratings.New(kv, staticDivisions{polID: division})

	require.NoError(t, kv.HSet(ctx, identity.UserKey("u1"), map[string]string{"party": "D"}))
	_, err := rat.Rate(ctx, polID, "u1", 4, identity.PartyDemocrat, false)
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, "u1", UpdateRequest{Party: "R"}))

	party, err := kv.HGet(ctx, identity.UserKey("u1"), "party")
	require.NoError(t, err)
	assert.Equal(t, "R", party)

	summary, err := rat.Get(ctx, polID, "")
	require.NoError(t, err)
	assert.Zero(t, summary.Outsider[identity.PartyDemocrat].Total)
	assert.Equal(t, int64(1), summary.Outsider[identity.PartyRepublican].Total)
}

func TestUpdatePartyDefaultsOldPartyToIndependent(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	svc := newTestService(kv)
	rat := ratings.New(kv, staticDivisions{polID: division})

	// No recorded party: the score sits in the Independent bucket.
	_, err := rat.Rate(ctx, polID, "u1", 3, identity.PartyIndependent, false)
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, "u1", UpdateRequest{Party: "G"}))

	summary, err := rat.Get(ctx, polID, "")
	require.NoError(t, err)
	assert.Zero(t, summary.Outsider[identity.PartyIndependent].Total)
	assert.Equal(t, int64(1), summary.Outsider[identity.PartyGreen].Total)
}

func TestUpdateSamePartyIsNoOp(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	svc := newTestService(kv)

	require.NoError(t, kv.HSet(ctx, identity.UserKey("u1"), map[string]string{"party": "D"}))
	require.NoError(t, svc.Update(ctx, "u1", UpdateRequest{Party: "D"}))
}

func TestUpdateAddressRequiresCoordinates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory())

	err := svc.Update(ctx, "u1", UpdateRequest{Address: "1 Main St"})
	assert.Error(t, err)

	err = svc.Update(ctx, "u1", UpdateRequest{
		Address: "1 Main St",
		Lat:     floatPtr(91),
		Lng:     floatPtr(0),
	})
	assert.Error(t, err)
}

func TestUpdateAddressReplacesDivisionsAndRelocates(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	svc := newTestService(kv)
	rat := ratings.New(kv, staticDivisions{polID: division})

	// Rated as an outsider from the old address.
	require.NoError(t, kv.SAdd(ctx, identity.UserDivisionsKey("u1"), "ocd-division/country:us/state:tx"))
	_, err := rat.Rate(ctx, polID, "u1", 5, identity.PartyIndependent, false)
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, "u1", UpdateRequest{
		Address:   "1 Capitol Mall, Sacramento CA",
		Lat:       floatPtr(38.576),
		Lng:       floatPtr(-121.493),
		Divisions: []string{division, "ocd-division/country:us/state:ca"},
	}))

	divisions, err := svc.Divisions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ocd-division/country:us/state:ca", division}, divisions)

	summary, err := rat.Get(ctx, polID, "")
	require.NoError(t, err)
	assert.Zero(t, summary.Outsider[identity.PartyIndependent].Total)
	assert.Equal(t, int64(1), summary.Resident[identity.PartyIndependent].Total)

	addr, err := kv.HGet(ctx, identity.UserKey("u1"), "home_address")
	require.NoError(t, err)
	assert.Equal(t, "1 Capitol Mall, Sacramento CA", addr)
}

func TestUpdateSameAddressIsNoOp(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	svc := newTestService(kv)

	require.NoError(t, kv.HSet(ctx, identity.UserKey("u1"), map[string]string{"home_address": "1 Main St"}))

	// No coordinates supplied, but the address matches the stored one, so
	// validation never runs.
	require.NoError(t, svc.Update(ctx, "u1", UpdateRequest{Address: "1 Main St"}))
}
