// Package identity defines the canonical politician identifier, the closed
// party-code set, and the key shapes the core writes to the key-value store.
// The key shapes are a compatibility contract: any storage backend must
// preserve them verbatim.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// Party is a one-letter party code.
type Party string

const (
	PartyDemocrat    Party = "D"
	PartyRepublican  Party = "R"
	PartyIndependent Party = "I"
	PartyGreen       Party = "G"
	PartyLibertarian Party = "L"
	PartyOther       Party = "O"
	PartyUnknown     Party = ""
)

// Parties is the closed set rating buckets are partitioned by.
var Parties = []Party{
	PartyDemocrat,
	PartyRepublican,
	PartyIndependent,
	PartyGreen,
	PartyLibertarian,
	PartyOther,
}

// PartyFromName maps a full party name to its short code. The mapping is
// total: unrecognised names land in Other, the literal "unknown" in Unknown.
func PartyFromName(name string) Party {
	switch strings.ToLower(name) {
	case "republican":
		return PartyRepublican
	case "democrat", "democratic":
		return PartyDemocrat
	case "green":
		return PartyGreen
	case "libertarian":
		return PartyLibertarian
	case "independent":
		return PartyIndependent
	case "unknown", "":
		return PartyUnknown
	default:
		return PartyOther
	}
}

// ParseParty returns the Party for a short code, defaulting to Independent
// for anything outside the closed set. Callers with no recorded party rate
// as Independents.
func ParseParty(code string) Party {
	p := Party(strings.ToUpper(code))
	for _, known := range Parties {
		if p == known {
			return p
		}
	}
	return PartyIndependent
}

// PoliticianID derives the content-based identifier for an official:
// sha1(divisionID + ":" + lower(lastName) + ":" + lower(firstName)).
// It is stable across re-fetches as long as division and name tokens do not
// change. Distinct people sharing name and division collide; accepted.
func PoliticianID(divisionID, lastName, firstName string) string {
	h := sha1.Sum([]byte(divisionID + ":" + strings.ToLower(lastName) + ":" + strings.ToLower(firstName)))
	return hex.EncodeToString(h[:])
}

// Key builders. Existing deployments depend on these exact shapes.

// SourceKey addresses the per-source record hash and doubles as the member
// format of the identity reference set.
func SourceKey(source, politicianID string) string {
	return source + ":" + politicianID
}

// IdentityKey addresses the set of source references for one identity.
func IdentityKey(politicianID string) string {
	return "politician:" + politicianID
}

// DivisionKey addresses the division metadata hash.
func DivisionKey(divisionID string) string {
	return "division:" + divisionID
}

// DivisionPoliticiansKey addresses the set of identities holding office in a
// division.
func DivisionPoliticiansKey(divisionID string) string {
	return "division:" + divisionID + ":politicians"
}

// RatingKey addresses the sorted set holding one (politician, party,
// residency) rating bucket.
func RatingKey(politicianID string, party Party, resident bool) string {
	if resident {
		return "politician:" + politicianID + ":rating:" + string(party)
	}
	return "politician:" + politicianID + ":rating_outsider:" + string(party)
}

// UserKey addresses a citizen's profile hash.
func UserKey(userID string) string {
	return "user:" + userID
}

// UserRatingsKey addresses the set of politician ids a citizen has rated.
func UserRatingsKey(userID string) string {
	return "user:" + userID + ":politician_ratings"
}

// UserDivisionsKey addresses the set of division ids a citizen belongs to.
func UserDivisionsKey(userID string) string {
	return "user:" + userID + ":divisions"
}

// IndexKey addresses one inverted-index token set.
func IndexKey(token string) string {
	return "zindex:" + token
}

// IndexKeyPattern builds the glob used to enumerate token sets.
func IndexKeyPattern(pattern string) string {
	return "zindex:" + pattern
}
