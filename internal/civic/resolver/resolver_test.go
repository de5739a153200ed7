package resolver

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicmesh/civic-broker/internal/civic/normalize"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

type nopIndexer struct{}

func (nopIndexer) IndexRecord(ctx context.Context, rec normalize.Record, politicianID, provenance string) error {
	return nil
}

type recordingWarmer struct {
	mu    sync.Mutex
	urls  []string
	files []string
}

func (w *recordingWarmer) Warm(url, filename string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.urls = append(w.urls, url)
	w.files = append(w.files, filename)
}

func newTestService(kv store.KV, cfg Config) *Service {
	return New(kv, nopIndexer{}, nil, cfg)
}

const testDivision = "ocd-division/country:us/state:ca/sldl:15"

func civicInfoRecord() normalize.RawRecord {
	return normalize.RawRecord{
		CivicInfo: &normalize.CivicInfoOfficial{
			DivisionID: testDivision,
			Name:       "Jane Smith",
			Party:      "Democratic",
			Emails:     []string{"jane@civicinfo.example"},
			Phones:     []string{"(916) 555-0100"},
		},
		Division: &normalize.DivisionInfo{
			ID:    testDivision,
			Name:  "California Assembly district 15",
			State: "ca",
		},
	}
}

func legislatorRecord() normalize.RawRecord {
	return normalize.RawRecord{
		Legislator: &normalize.LegislatorEntry{
			FirstName:  "Jane",
			LastName:   "Smith",
			BoundaryID: testDivision,
			Email:      "jane@legisdir.example",
			URL:        "https://legisdir.example/jane",
			Party:      "Democratic",
			State:      "ca",
			Chamber:    "lower",
			Active:     true,
		},
	}
}

func TestIngestAndResolveSingleSource(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Config{})

	id, err := svc.Ingest(ctx, "civicinfo", civicInfoRecord())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	prof, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, prof.ID)
	assert.Equal(t, "Jane Smith", prof.Name)
	assert.Equal(t, testDivision, prof.DivisionID)
	assert.Equal(t, "D", prof.Party)
	require.Len(t, prof.DataSources, 1)
	assert.Equal(t, "civicinfo", prof.DataSources[0].Source)
}

func TestResolveMergesByPriority(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Config{})

	civicID, err := svc.Ingest(ctx, "civicinfo", civicInfoRecord())
	require.NoError(t, err)
	legisID, err := svc.Ingest(ctx, "legisdir", legislatorRecord())
	require.NoError(t, err)
	require.Equal(t, civicID, legisID, "same person in the same division resolves to one id")

	prof, err := svc.Resolve(ctx, civicID)
	require.NoError(t, err)

	// Both sources carry an email; the civic-info value wins. The URL only
	// exists in the directory record and fills the gap.
	assert.Equal(t, "jane@civicinfo.example", prof.Email)
	assert.Equal(t, "https://legisdir.example/jane", prof.URL)
	require.Len(t, prof.DataSources, 2)
	assert.Equal(t, "civicinfo", prof.DataSources[0].Source)
	assert.Equal(t, "legisdir", prof.DataSources[1].Source)
}

func TestIngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	svc := newTestService(kv, Config{})

	id1, err := svc.Ingest(ctx, "civicinfo", civicInfoRecord())
	require.NoError(t, err)
	id2, err := svc.Ingest(ctx, "civicinfo", civicInfoRecord())
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	prof, err := svc.Resolve(ctx, id1)
	require.NoError(t, err)
	assert.Len(t, prof.DataSources, 1)
}

func TestResolveUnknownIdentityYieldsEmptyProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Config{})

	prof, err := svc.Resolve(ctx, "deadbeef")
	require.NoError(t, err)
	assert.True(t, prof.Empty())
	assert.Equal(t, "deadbeef", prof.ID)
	assert.NotNil(t, prof.DataSources, "data_sources serializes as [] not null")
}

func TestResolveRebuildsCommaName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Config{})

	raw := civicInfoRecord()
	raw.CivicInfo.Name = "Smith, Jane"
	id, err := svc.Ingest(ctx, "civicinfo", raw)
	require.NoError(t, err)

	prof, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Smith Jane", prof.Name)
}

func TestDivisionOf(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Config{})

	id, err := svc.Ingest(ctx, "civicinfo", civicInfoRecord())
	require.NoError(t, err)

	div, err := svc.DivisionOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, testDivision, div)

	div, err = svc.DivisionOf(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Empty(t, div)
}

func TestPhotoCacheRewriteAndWarm(t *testing.T) {
	ctx := context.Background()
	warmer := &recordingWarmer{}
	svc := New(store.NewMemory(), nopIndexer{}, warmer, Config{
		PublicBase:   "https://broker.example",
		CacheEnabled: true,
	})

	raw := civicInfoRecord()
	raw.CivicInfo.PhotoURL = "https://photos.example/jane.jpg"
	id, err := svc.Ingest(ctx, "civicinfo", raw)
	require.NoError(t, err)

	prof, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://broker.example/images/"+id+".jpg", prof.PhotoURL)

	warmer.mu.Lock()
	defer warmer.mu.Unlock()
	require.Len(t, warmer.urls, 1)
	assert.Equal(t, "https://photos.example/jane.jpg", warmer.urls[0])
	assert.Equal(t, id+".jpg", warmer.files[0])
}

func TestPhotoPassesThroughWhenCacheDisabled(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Config{})

	raw := civicInfoRecord()
	raw.CivicInfo.PhotoURL = "https://photos.example/jane.jpg"
	id, err := svc.Ingest(ctx, "civicinfo", raw)
	require.NoError(t, err)

	prof, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://photos.example/jane.jpg", prof.PhotoURL)
}

func TestExternalLinks(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Config{})

	raw := civicInfoRecord()
	raw.CivicInfo.ExternalID = normalize.ExternalIDs{
		Ballotpedia: "Jane_Smith",
		Wikipedia:   "Jane_Smith_(politician)",
	}
	id, err := svc.Ingest(ctx, "civicinfo", raw)
	require.NoError(t, err)

	prof, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	require.Len(t, prof.ExternalLinks, 2)
	assert.Equal(t, "ballotpedia", prof.ExternalLinks[0].Site)
	assert.Equal(t, "https://ballotpedia.org/Jane_Smith", prof.ExternalLinks[0].URL)
	assert.Equal(t, "wikipedia", prof.ExternalLinks[1].Site)
}

func TestRepresentativesGroupsByChamber(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemory(), Config{})

	_, err := svc.Ingest(ctx, "legisdir", legislatorRecord())
	require.NoError(t, err)

	upper := normalize.RawRecord{Legislator: &normalize.LegislatorEntry{
		FirstName:  "Sam",
		LastName:   "Nguyen",
		BoundaryID: "ocd-division/country:us/state:ca/sldu:7",
		Party:      "Republican",
		State:      "ca",
		Chamber:    "upper",
		Active:     true,
	}}
	_, err = svc.Ingest(ctx, "legisdir", upper)
	require.NoError(t, err)

	reps, err := svc.Representatives(ctx, []string{
		testDivision,
		"ocd-division/country:us/state:ca/sldu:7",
	})
	require.NoError(t, err)

	require.Len(t, reps.SLDL, 1)
	assert.Equal(t, "Jane Smith", reps.SLDL[0].Incumbents[0].Name)
	assert.Equal(t, "15", reps.SLDL[0].District)
	require.Len(t, reps.SLDU, 1)
	assert.Equal(t, "Sam Nguyen", reps.SLDU[0].Incumbents[0].Name)
	assert.Empty(t, reps.CD)
	assert.Empty(t, reps.Sen)
}
