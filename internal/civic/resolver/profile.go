package resolver

import (
	"sort"
	"strings"

	"github.com/civicmesh/civic-broker/internal/civic/normalize"
)

// Profile is the canonical, merged view of one politician. It is computed on
// every read and never persisted; absent fields stay empty.
type Profile struct {
	ID          string `json:"id"`
	DivisionID  string `json:"divisionId,omitempty"`
	Name        string `json:"name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Party       string `json:"party,omitempty"`
	State       string `json:"state,omitempty"`
	District    string `json:"district,omitempty"`
	URL         string `json:"url,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Facebook    string `json:"facebook,omitempty"`
	Twitter     string `json:"twitter,omitempty"`
	GooglePlus  string `json:"googleplus,omitempty"`
	YouTube     string `json:"youtube,omitempty"`
	YouTubeID   string `json:"youtube_id,omitempty"`
	Office      string `json:"office,omitempty"`
	Level       string `json:"level,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`

	DataSources   []DataSource   `json:"data_sources"`
	ExternalLinks []ExternalLink `json:"external_links,omitempty"`
}

// Empty reports whether the profile carries no source data at all.
func (p Profile) Empty() bool {
	return p.Name == "" && p.DivisionID == "" && len(p.DataSources) == 0
}

// DataSource attributes one contributing provider.
type DataSource struct {
	Source      string `json:"source"`
	Attribution string `json:"attribution"`
	URL         string `json:"url,omitempty"`
}

// ExternalLink points at a politician's page on a third-party reference
// site.
type ExternalLink struct {
	Site string `json:"site"`
	URL  string `json:"url"`
}

var sourceAttributions = map[string]DataSource{
	"civicinfo": {Source: "civicinfo", Attribution: "Civic Information API", URL: "https://developers.google.com/civic-information"},
	"legisdir":  {Source: "legisdir", Attribution: "Open States legislator directory", URL: "https://openstates.org"},
	"imported":  {Source: "imported", Attribution: "Manually imported records"},
}

// referenceSites maps record id-fields to canonical URL templates; `%s` is
// replaced by the stored id.
var referenceSites = []struct {
	field    string
	site     string
	template string
}{
	{normalize.FieldVoteSmartID, "votesmart", "https://justfacts.votesmart.org/candidate/%s"},
	{normalize.FieldOpenSecretsID, "opensecrets", "https://www.opensecrets.org/members-of-congress/summary?cid=%s"},
	{normalize.FieldBallotpediaID, "ballotpedia", "https://ballotpedia.org/%s"},
	{normalize.FieldFECID, "fec", "https://www.fec.gov/data/candidate/%s/"},
	{normalize.FieldWikipediaID, "wikipedia", "https://en.wikipedia.org/wiki/%s"},
}

func profileFromRecord(politicianID string, rec normalize.Record) Profile {
	p := Profile{
		ID:          politicianID,
		DivisionID:  rec[normalize.FieldDivisionID],
		Name:        rec[normalize.FieldName],
		FirstName:   rec[normalize.FieldFirstName],
		LastName:    rec[normalize.FieldLastName],
		Address:     rec[normalize.FieldAddress],
		Phone:       rec[normalize.FieldPhone],
		Email:       rec[normalize.FieldEmail],
		Party:       rec[normalize.FieldParty],
		State:       rec[normalize.FieldState],
		District:    rec[normalize.FieldDistrict],
		URL:         rec[normalize.FieldURL],
		PhotoURL:    rec[normalize.FieldPhotoURL],
		Facebook:    rec[normalize.FieldFacebook],
		Twitter:     rec[normalize.FieldTwitter],
		GooglePlus:  rec[normalize.FieldGooglePlus],
		YouTube:     rec[normalize.FieldYouTube],
		YouTubeID:   rec[normalize.FieldYouTubeID],
		Office:      rec[normalize.FieldOffice],
		Level:       rec[normalize.FieldLevel],
		LastUpdated: rec[normalize.FieldUpdated],
	}

	// Some providers ship "Last, First" names or no display name at all;
	// rebuild from the name parts in both cases.
	if (p.Name == "" || strings.Contains(p.Name, ",")) && p.LastName != "" {
		p.Name = strings.TrimSpace(titleCase(p.FirstName) + " " + titleCase(p.LastName))
	}
	return p
}

func attributions(sources map[string]normalize.Record) []DataSource {
	names := make([]string, 0, len(sources))
	for source := range sources {
		names = append(names, source)
	}
	sort.Strings(names)

	out := make([]DataSource, 0, len(names))
	for _, source := range names {
		if ds, ok := sourceAttributions[source]; ok {
			out = append(out, ds)
			continue
		}
		out = append(out, DataSource{Source: source, Attribution: source})
	}
	return out
}

func externalLinks(rec normalize.Record) []ExternalLink {
	var links []ExternalLink
	for _, site := range referenceSites {
		id := rec[site.field]
		if id == "" {
			continue
		}
		links = append(links, ExternalLink{
			Site: site.site,
			URL:  strings.Replace(site.template, "%s", id, 1),
		})
	}
	return links
}

func titleCase(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
