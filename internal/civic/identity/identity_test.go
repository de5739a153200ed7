package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoliticianIDIsStableAndCaseInsensitive(t *testing.T) {
	a := PoliticianID("ocd-division/country:us/state:ca/sldl:15", "smith", "jane")
	b := PoliticianID("ocd-division/country:us/state:ca/sldl:15", "SMITH", "Jane")
	assert.Equal(t, a, b)

	sum := sha1.Sum([]byte("ocd-division/country:us/state:ca/sldl:15:smith:jane"))
	assert.Equal(t, hex.EncodeToString(sum[:]), a)
}

func TestPoliticianIDChangesWithDivision(t *testing.T) {
	a := PoliticianID("ocd-division/country:us/state:ca/sldl:15", "smith", "jane")
	b := PoliticianID("ocd-division/country:us/state:ca/sldl:16", "smith", "jane")
	assert.NotEqual(t, a, b)
}

func TestPartyFromName(t *testing.T) {
	cases := []struct {
		name string
		want Party
	}{
		{"Democratic", PartyDemocrat},
		{"democrat", PartyDemocrat},
		{"Republican", PartyRepublican},
		{"Green", PartyGreen},
		{"Libertarian", PartyLibertarian},
		{"Independent", PartyIndependent},
		{"unknown", PartyUnknown},
		{"", PartyUnknown},
		{"Whig", PartyOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PartyFromName(tc.name), "name %q", tc.name)
	}
}

func TestParsePartyDefaultsToIndependent(t *testing.T) {
	assert.Equal(t, PartyDemocrat, ParseParty("d"))
	assert.Equal(t, PartyRepublican, ParseParty("R"))
	assert.Equal(t, PartyIndependent, ParseParty(""))
	assert.Equal(t, PartyIndependent, ParseParty("X"))
}

func TestRatingKeyShapes(t *testing.T) {
	assert.Equal(t, "politician:abc:rating:D", RatingKey("abc", PartyDemocrat, true))
	assert.Equal(t, "politician:abc:rating_outsider:D", RatingKey("abc", PartyDemocrat, false))
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "civicinfo:abc", SourceKey("civicinfo", "abc"))
	assert.Equal(t, "politician:abc", IdentityKey("abc"))
	assert.Equal(t, "division:xyz:politicians", DivisionPoliticiansKey("xyz"))
	assert.Equal(t, "user:u1:politician_ratings", UserRatingsKey("u1"))
	assert.Equal(t, "user:u1:divisions", UserDivisionsKey("u1"))
	assert.Equal(t, "zindex:california", IndexKey("california"))
	assert.Equal(t, "zindex:*cal*", IndexKeyPattern("*cal*"))
}
