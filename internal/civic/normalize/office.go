package normalize

import "strings"

// Chamber classifies an office into the buckets the representatives view
// groups by.
type Chamber string

const (
	ChamberUSHouse    Chamber = "cd"
	ChamberUSSenate   Chamber = "sen"
	ChamberStateUpper Chamber = "sldu"
	ChamberStateLower Chamber = "sldl"
	ChamberOther      Chamber = "other"
)

// ClassifyOffice maps an office title and its government levels to a
// Chamber. Providers publish no authoritative taxonomy for office titles,
// so this is a substring heuristic: federal offices split on House vs
// Senate, state offices on Senate vs House/Assembly/Delegate.
func ClassifyOffice(title string, levels []string) Chamber {
	hasLevel := func(level string) bool {
		for _, l := range levels {
			if l == level {
				return true
			}
		}
		return false
	}

	switch {
	case hasLevel("country"):
		if strings.Contains(title, "House of Representatives") {
			return ChamberUSHouse
		}
		if strings.Contains(title, "Senate") {
			return ChamberUSSenate
		}
		return ChamberOther
	case hasLevel("administrativeArea1"):
		// Legislator-directory titles carry the raw chamber tag ("upper",
		// "lower"); civic-info titles name the body.
		if strings.Contains(title, "Senate") || strings.Contains(title, "upper") {
			return ChamberStateUpper
		}
		if strings.Contains(title, "House") ||
			strings.Contains(title, "Assembly") ||
			strings.Contains(title, "Delegate") ||
			strings.Contains(title, "lower") {
			return ChamberStateLower
		}
		return ChamberOther
	default:
		return ChamberOther
	}
}

// ChamberFromLegislative maps a legislator-directory chamber tag to the
// state bucket.
func ChamberFromLegislative(chamber string) Chamber {
	if strings.EqualFold(chamber, "upper") {
		return ChamberStateUpper
	}
	return ChamberStateLower
}

// ChamberTitle trims trailing district qualifiers from a state office title
// for display ("California State Senate District 11" -> "California State
// Senate").
func ChamberTitle(title string) string {
	if idx := strings.Index(title, " District"); idx >= 0 {
		return title[:idx]
	}
	return title
}
