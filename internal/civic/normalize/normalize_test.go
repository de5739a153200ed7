package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
)

func TestNormalizeCivicInfo(t *testing.T) {
	rec, err := Normalize(RawRecord{CivicInfo: &CivicInfoOfficial{
		DivisionID: "ocd-division/country:us/state:ca/sldl:15",
		Name:       "Jane Q Smith",
		Party:      "Democratic",
		State:      "CA",
		Addresses:  []Address{{Line1: "1 Capitol Mall", City: "Sacramento", State: "CA", Zip: "95814"}},
		Phones:     []string{"(916) 555-0100"},
		Emails:     []string{"jane@example.gov"},
		URLs:       []string{"https://example.gov/jane"},
		Office:     "State Assembly",
		Levels:     []string{"administrativeArea1"},
		Channels: []Channel{
			{Type: "Twitter", ID: "janesmith"},
			{Type: "YouTube", ID: "UCabc123"},
			{Type: "YouTube", ID: "janesmithtv"},
		},
	}})
	require.NoError(t, err)

	assert.Equal(t, identity.PoliticianID("ocd-division/country:us/state:ca/sldl:15", "smith", "jane"), rec[FieldID])
	assert.Equal(t, "Jane Q Smith", rec[FieldName])
	assert.Equal(t, "jane", rec[FieldFirstName])
	assert.Equal(t, "smith", rec[FieldLastName])
	assert.Equal(t, "D", rec[FieldParty])
	assert.Equal(t, "15", rec[FieldDistrict])
	assert.Equal(t, "1 Capitol Mall, Sacramento, CA, 95814", rec[FieldAddress])
	assert.Equal(t, "janesmith", rec[FieldTwitter])
	assert.Equal(t, "UCabc123", rec[FieldYouTubeID])
	assert.Equal(t, "administrativeArea1", rec[FieldLevel])
	assert.NotEmpty(t, rec[FieldUpdated])

	// The last YouTube channel wins within its kind; the vanity name landed
	// in the youtube field, the UC id in youtube_id.
	assert.Equal(t, "janesmithtv", rec[FieldYouTube])
}

func TestNormalizeCivicInfoDropsEmptyFields(t *testing.T) {
	rec, err := Normalize(RawRecord{CivicInfo: &CivicInfoOfficial{
		DivisionID: "ocd-division/country:us/state:tx",
		Name:       "Bob Jones",
	}})
	require.NoError(t, err)

	_, hasEmail := rec[FieldEmail]
	assert.False(t, hasEmail)
	_, hasParty := rec[FieldParty]
	assert.False(t, hasParty, "unknown party normalizes to empty and is dropped")
	_, hasDistrict := rec[FieldDistrict]
	assert.False(t, hasDistrict, "non-numeric division suffix carries no district")
}

func TestNormalizeCivicInfoRequiresNameAndDivision(t *testing.T) {
	_, err := Normalize(RawRecord{CivicInfo: &CivicInfoOfficial{Name: "No Division"}})
	assert.Error(t, err)

	_, err = Normalize(RawRecord{CivicInfo: &CivicInfoOfficial{DivisionID: "ocd-division/country:us"}})
	assert.Error(t, err)
}

func TestNormalizeLegislator(t *testing.T) {
	rec, err := Normalize(RawRecord{Legislator: &LegislatorEntry{
		FirstName:  "Maria",
		LastName:   "Lopez",
		BoundaryID: "ocd-division/country:us/state:tx/sldu:7",
		Offices:    []LegOffice{{Address: "PO Box 12068, Austin, TX", Phone: "(512) 555-0101"}},
		Party:      "Republican",
		State:      "tx",
		District:   "7",
		Chamber:    "upper",
		Active:     true,
	}})
	require.NoError(t, err)

	assert.Equal(t, identity.PoliticianID("ocd-division/country:us/state:tx/sldu:7", "lopez", "maria"), rec[FieldID])
	assert.Equal(t, "Maria Lopez", rec[FieldName])
	assert.Equal(t, "R", rec[FieldParty])
	assert.Equal(t, "TX", rec[FieldState])
	assert.Equal(t, "TX State Legislative upper House", rec[FieldOffice])
	assert.Equal(t, "administrativeArea1", rec[FieldLevel])
	assert.Equal(t, "PO Box 12068, Austin, TX", rec[FieldAddress])
}

func TestNormalizeLegislatorRejectsInactive(t *testing.T) {
	_, err := Normalize(RawRecord{Legislator: &LegislatorEntry{
		FirstName:  "Old",
		LastName:   "Member",
		BoundaryID: "ocd-division/country:us/state:tx/sldu:7",
		Active:     false,
	}})
	assert.Error(t, err)
}

func TestNormalizeRejectsEmptyEnvelope(t *testing.T) {
	_, err := Normalize(RawRecord{})
	assert.Error(t, err)
}

func TestClassifyOffice(t *testing.T) {
	cases := []struct {
		title  string
		levels []string
		want   Chamber
	}{
		{"United States House of Representatives CA-12", []string{"country"}, ChamberUSHouse},
		{"United States Senate", []string{"country"}, ChamberUSSenate},
		{"CA State Legislative upper House", []string{"administrativeArea1"}, ChamberStateUpper},
		{"CA State Legislative lower House", []string{"administrativeArea1"}, ChamberStateLower},
		{"Governor of California", []string{"administrativeArea1"}, ChamberOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyOffice(tc.title, tc.levels), "title %q", tc.title)
	}
}
