package textnorm

import "strings"

// keywordTerm maps a material keyword (Indonesian or English) to the simple
// Indonesian search term that performs well on the marketplace. Checked in
// order; the first keyword contained in the name wins.
type keywordTerm struct {
	keyword string
	term    string
}

var simplifyTerms = []keywordTerm{
	// Structural
	{"beton", "semen"},
	{"concrete", "semen"},
	{"semen", "semen 50kg"},
	{"cement", "semen 50kg"},
	{"besi", "besi beton"},
	{"iron", "besi beton"},
	{"steel", "besi beton"},
	{"baja", "baja ringan"},
	// Finishing
	{"keramik", "keramik lantai"},
	{"ceramic", "keramik lantai"},
	{"tile", "keramik lantai"},
	{"cat", "cat tembok"},
	{"paint", "cat tembok"},
	{"granit", "granit lantai"},
	{"granite", "granit lantai"},
	// Plumbing
	{"pipa", "pipa pvc"},
	{"pipe", "pipa pvc"},
	{"kran", "kran air"},
	{"faucet", "kran air"},
	{"closet", "closet duduk"},
	{"toilet", "closet duduk"},
	// Waterproofing
	{"waterproof", "waterproofing"},
	{"membran", "waterproofing"},
	{"membrane", "waterproofing"},
	{"bitumen", "waterproofing"},
	// Electrical
	{"kabel", "kabel listrik"},
	{"cable", "kabel listrik"},
	{"lampu", "lampu led"},
	{"lamp", "lampu led"},
	{"light", "lampu led"},
	{"saklar", "saklar"},
	{"switch", "saklar"},
	// Pool
	{"kolam", "keramik kolam"},
	{"pool", "keramik kolam"},
	{"filter", "filter kolam"},
	{"pompa", "pompa air"},
	{"pump", "pompa air"},
}

// Simplify reduces a technical material name to a generic Indonesian search
// term for the scrape retry, e.g. "Campuran Beton 25 MPa" -> "semen".
// Unknown names fall back to their first two substantive words with
// numeric/spec tokens stripped.
func Simplify(name string) string {
	lower := strings.ToLower(name)

	for _, kt := range simplifyTerms {
		if strings.Contains(lower, kt.keyword) {
			return kt.term
		}
	}

	stripped := numSpecRe.ReplaceAllString(lower, "")
	words := strings.Fields(stripped)
	if len(words) > 2 {
		words = words[:2]
	}
	var core []string
	for _, w := range words {
		if len(w) > 2 {
			core = append(core, w)
		}
	}
	if len(core) > 0 {
		return strings.Join(core, " ")
	}
	if len(name) > 20 {
		return name[:20]
	}
	return name
}

// InferUnit guesses the sale unit from name patterns for dynamically created
// price records. Defaults to "pcs".
func InferUnit(name string) string {
	lower := strings.ToLower(name)

	switch {
	case containsAny(lower, "kg", "kilogram", "gram"):
		return "kg"
	case containsAny(lower, "sak", "zak", "bag"):
		return "sak"
	case containsAny(lower, "m²", "m2", "meter persegi"):
		return "m²"
	case containsAny(lower, "m³", "m3", "kubik"):
		return "m³"
	case containsAny(lower, "meter", "4m", "6m"):
		return "meter"
	case containsAny(lower, "lembar", "sheet", "plywood", "gypsum", "triplek"):
		return "lembar"
	case containsAny(lower, "batang", "besi", "pipa", "hollow"):
		return "batang"
	case containsAny(lower, "liter", "galon"):
		return "liter"
	case containsAny(lower, "bata", "keramik", "genteng", "kran", "saklar"):
		return "buah"
	default:
		return "pcs"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
