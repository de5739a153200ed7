// Package normalize converts raw provider records into the flat SourceRecord
// attribute maps the core stores and indexes. Two provider shapes are
// understood: civic-info style officials and legislator-directory style
// entries. Empty fields are dropped so merge logic can treat absence and
// emptiness the same way.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
)

// Record is a flat SourceRecord: canonical field name to string value.
type Record map[string]string

// Canonical field names.
const (
	FieldID         = "id"
	FieldDivisionID = "division_id"
	FieldName       = "name"
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldAddress    = "address"
	FieldPhone      = "phone"
	FieldEmail      = "email"
	FieldParty      = "party"
	FieldState      = "state"
	FieldDistrict   = "district"
	FieldURL        = "url"
	FieldPhotoURL   = "photo_url"
	FieldFacebook   = "facebook"
	FieldTwitter    = "twitter"
	FieldGooglePlus = "googleplus"
	FieldYouTube    = "youtube"
	FieldYouTubeID  = "youtube_id"
	FieldOffice     = "office"
	FieldLevel      = "level"
	FieldUpdated    = "last_updated"

	// Reference-site id fields, carried through when a provider supplies
	// them and translated into external links at resolve time.
	FieldVoteSmartID   = "votesmart_id"
	FieldOpenSecretsID = "opensecrets_id"
	FieldBallotpediaID = "ballotpedia_id"
	FieldFECID         = "fec_id"
	FieldWikipediaID   = "wikipedia_id"
)

// RawRecord is the envelope handed over by the external data-fetch
// collaborator: exactly one provider shape, plus optional division metadata.
type RawRecord struct {
	CivicInfo  *CivicInfoOfficial `json:"civic_info,omitempty"`
	Legislator *LegislatorEntry   `json:"legislator,omitempty"`
	Division   *DivisionInfo      `json:"division,omitempty"`
}

// CivicInfoOfficial is a civic-info style official.
type CivicInfoOfficial struct {
	DivisionID string    `json:"division_id"`
	Name       string    `json:"name"`
	Addresses  []Address `json:"addresses,omitempty"`
	Phones     []string  `json:"phones,omitempty"`
	Emails     []string  `json:"emails,omitempty"`
	Party      string    `json:"party,omitempty"`
	URLs       []string  `json:"urls,omitempty"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	Channels   []Channel `json:"channels,omitempty"`
	Office     string    `json:"office,omitempty"`
	Levels     []string  `json:"levels,omitempty"`
	State      string    `json:"state,omitempty"`
	ExternalID ExternalIDs `json:"external_ids,omitempty"`
}

// Address is a structured mailing address.
type Address struct {
	Line1 string `json:"line1,omitempty"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
	Zip   string `json:"zip,omitempty"`
}

// Channel is a social-media handle with a provider-defined type.
type Channel struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ExternalIDs carries reference-site identifiers when the provider has them.
type ExternalIDs struct {
	VoteSmart   string `json:"votesmart,omitempty"`
	OpenSecrets string `json:"opensecrets,omitempty"`
	Ballotpedia string `json:"ballotpedia,omitempty"`
	FEC         string `json:"fec,omitempty"`
	Wikipedia   string `json:"wikipedia,omitempty"`
}

// LegislatorEntry is a legislator-directory style record.
type LegislatorEntry struct {
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	FullName   string      `json:"full_name,omitempty"`
	BoundaryID string      `json:"boundary_id"`
	Offices    []LegOffice `json:"offices,omitempty"`
	Email      string      `json:"email,omitempty"`
	Party      string      `json:"party,omitempty"`
	State      string      `json:"state,omitempty"`
	District   string      `json:"district,omitempty"`
	URL        string      `json:"url,omitempty"`
	PhotoURL   string      `json:"photo_url,omitempty"`
	Chamber    string      `json:"chamber,omitempty"`
	Active     bool        `json:"active"`
}

// LegOffice is a district or capitol office listing.
type LegOffice struct {
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// DivisionInfo is optional division metadata carried alongside a record.
type DivisionInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Scope string `json:"scope,omitempty"`
	State string `json:"state,omitempty"`
}

// Normalize flattens a raw provider record into a SourceRecord keyed by the
// derived politician id. Exactly one provider shape must be present.
func Normalize(raw RawRecord) (Record, error) {
	switch {
	case raw.CivicInfo != nil:
		return fromCivicInfo(*raw.CivicInfo)
	case raw.Legislator != nil:
		return fromLegislator(*raw.Legislator)
	default:
		return nil, fmt.Errorf("raw record carries no provider payload")
	}
}

func fromCivicInfo(o CivicInfoOfficial) (Record, error) {
	name := strings.TrimSpace(o.Name)
	if name == "" || o.DivisionID == "" {
		return nil, fmt.Errorf("civic-info official missing name or division")
	}
	parts := strings.Fields(name)
	first := strings.ToLower(strings.Trim(parts[0], ","))
	last := strings.ToLower(strings.Trim(parts[len(parts)-1], ","))

	rec := Record{
		FieldID:         identity.PoliticianID(o.DivisionID, last, first),
		FieldDivisionID: o.DivisionID,
		FieldName:       name,
		FieldFirstName:  first,
		FieldLastName:   last,
		FieldParty:      string(identity.PartyFromName(o.Party)),
		FieldState:      o.State,
		FieldDistrict:   districtFromDivision(o.DivisionID),
		FieldPhotoURL:   o.PhotoURL,
		FieldOffice:     o.Office,
		FieldLevel:      strings.Join(o.Levels, " "),
		FieldUpdated:    timestamp(),
	}
	if len(o.Addresses) > 0 {
		rec[FieldAddress] = formatAddress(o.Addresses[0])
	}
	if len(o.Phones) > 0 {
		rec[FieldPhone] = o.Phones[0]
	}
	if len(o.Emails) > 0 {
		rec[FieldEmail] = o.Emails[0]
	}
	if len(o.URLs) > 0 {
		rec[FieldURL] = o.URLs[0]
	}
	for _, ch := range o.Channels {
		switch ch.Type {
		case "Facebook":
			rec[FieldFacebook] = ch.ID
		case "Twitter":
			rec[FieldTwitter] = ch.ID
		case "GooglePlus":
			rec[FieldGooglePlus] = ch.ID
		case "YouTube":
			// Channel ids starting with UC are opaque channel keys, not
			// vanity names.
			if strings.HasPrefix(ch.ID, "UC") {
				rec[FieldYouTubeID] = ch.ID
			} else {
				rec[FieldYouTube] = ch.ID
			}
		}
	}
	rec[FieldVoteSmartID] = o.ExternalID.VoteSmart
	rec[FieldOpenSecretsID] = o.ExternalID.OpenSecrets
	rec[FieldBallotpediaID] = o.ExternalID.Ballotpedia
	rec[FieldFECID] = o.ExternalID.FEC
	rec[FieldWikipediaID] = o.ExternalID.Wikipedia

	return clean(rec), nil
}

func fromLegislator(l LegislatorEntry) (Record, error) {
	if !l.Active {
		return nil, fmt.Errorf("legislator entry inactive")
	}
	if l.LastName == "" || l.BoundaryID == "" {
		return nil, fmt.Errorf("legislator entry missing name or boundary")
	}
	first := strings.ToLower(l.FirstName)
	last := strings.ToLower(l.LastName)
	name := l.FullName
	if name == "" {
		name = strings.TrimSpace(l.FirstName + " " + l.LastName)
	}

	rec := Record{
		FieldID:         identity.PoliticianID(l.BoundaryID, last, first),
		FieldDivisionID: l.BoundaryID,
		FieldName:       name,
		FieldFirstName:  first,
		FieldLastName:   last,
		FieldEmail:      l.Email,
		FieldParty:      string(identity.PartyFromName(l.Party)),
		FieldState:      strings.ToUpper(l.State),
		FieldDistrict:   l.District,
		FieldURL:        l.URL,
		FieldPhotoURL:   l.PhotoURL,
		FieldUpdated:    timestamp(),
	}
	if len(l.Offices) > 0 {
		rec[FieldAddress] = l.Offices[0].Address
		rec[FieldPhone] = l.Offices[0].Phone
	}
	if l.Chamber != "" && l.State != "" {
		rec[FieldOffice] = strings.ToUpper(l.State) + " State Legislative " + l.Chamber + " House"
		rec[FieldLevel] = "administrativeArea1"
	}

	return clean(rec), nil
}

// districtFromDivision extracts the trailing district number from a division
// id; the last colon-separated segment is the district when numeric.
func districtFromDivision(divisionID string) string {
	segs := strings.Split(divisionID, ":")
	last := segs[len(segs)-1]
	if _, err := strconv.Atoi(last); err != nil {
		return ""
	}
	return last
}

func formatAddress(a Address) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Line1, a.City, a.State, a.Zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// clean drops empty fields so absence and emptiness are indistinguishable
// downstream.
func clean(rec Record) Record {
	for field, value := range rec {
		if value == "" {
			delete(rec, field)
		}
	}
	return rec
}

func timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}
