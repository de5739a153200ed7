package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/civicmesh/civic-broker/internal/civic/identity"
	"github.com/civicmesh/civic-broker/internal/civic/normalize"
)

// Office is one office within a division and its current office-holders.
type Office struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	Title      string    `json:"title,omitempty"`
	State      string    `json:"state,omitempty"`
	District   string    `json:"district,omitempty"`
	Incumbents []Profile `json:"incumbents"`
}

// Representatives groups a citizen's offices by chamber.
type Representatives struct {
	CD    []Office `json:"cd"`
	Sen   []Office `json:"sen"`
	SLDU  []Office `json:"sldu"`
	SLDL  []Office `json:"sldl"`
	Other []Office `json:"other"`
}

// Representatives resolves every politician recorded for the given divisions
// and groups them by chamber. Division membership comes from the stored
// division sets; the provider fetch that populates them is an external
// collaborator.
func (s *Service) Representatives(ctx context.Context, divisionIDs []string) (Representatives, error) {
	reps := Representatives{
		CD:    []Office{},
		Sen:   []Office{},
		SLDU:  []Office{},
		SLDL:  []Office{},
		Other: []Office{},
	}

	for _, divisionID := range divisionIDs {
		ids, err := s.kv.SMembers(ctx, identity.DivisionPoliticiansKey(divisionID))
		if err != nil {
			return reps, fmt.Errorf("loading division %s: %w", divisionID, err)
		}
		district := districtOf(divisionID)

		// One office entry per distinct office title within the division.
		byOffice := make(map[string]*Office)
		var titles []string
		for _, politicianID := range ids {
			profile, err := s.Resolve(ctx, politicianID)
			if err != nil {
				return reps, err
			}
			if profile.Empty() {
				continue
			}
			of, ok := byOffice[profile.Office]
			if !ok {
				of = &Office{
					Key:      divisionID + ":" + strconv.Itoa(len(titles)),
					Name:     profile.Office,
					State:    profile.State,
					District: district,
				}
				byOffice[profile.Office] = of
				titles = append(titles, profile.Office)
			}
			of.Incumbents = append(of.Incumbents, profile)
		}

		for _, title := range titles {
			of := byOffice[title]
			levels := strings.Fields(levelOf(of.Incumbents))
			switch normalize.ClassifyOffice(title, levels) {
			case normalize.ChamberUSHouse:
				of.Title = "U.S. House of Representatives"
				reps.CD = append(reps.CD, *of)
			case normalize.ChamberUSSenate:
				of.Title = "U.S. Senate"
				reps.Sen = append(reps.Sen, *of)
			case normalize.ChamberStateUpper:
				of.Title = normalize.ChamberTitle(title)
				reps.SLDU = append(reps.SLDU, *of)
			case normalize.ChamberStateLower:
				of.Title = normalize.ChamberTitle(title)
				reps.SLDL = append(reps.SLDL, *of)
			default:
				reps.Other = append(reps.Other, *of)
			}
		}
	}
	return reps, nil
}

func levelOf(incumbents []Profile) string {
	for _, p := range incumbents {
		if p.Level != "" {
			return p.Level
		}
	}
	return ""
}

// districtOf extracts the numeric district suffix of a division id, if any.
func districtOf(divisionID string) string {
	segs := strings.Split(divisionID, ":")
	last := segs[len(segs)-1]
	if _, err := strconv.Atoi(last); err != nil {
		return ""
	}
	return last
}
