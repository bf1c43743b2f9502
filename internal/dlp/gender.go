package dlp

import "strings"

type gender int

const (
	genderUnknown gender = iota
	genderFemale
	genderMale
)

// Common German first names. The lists drive both the first-name detection
// rule and the gender heuristic used when synthesizing replacement names.
// A lexicon lookup is intentionally all there is to it; names missing here
// simply fall back to an ungendered replacement.
var femaleFirstNames = []string{
	"Anna", "Maria", "Laura", "Julia", "Lena", "Sophie", "Sofia", "Emma",
	"Hannah", "Hanna", "Mia", "Lea", "Leonie", "Sarah", "Lisa", "Johanna",
	"Katharina", "Christina", "Sabine", "Claudia", "Monika", "Petra",
	"Andrea", "Stefanie", "Nicole", "Susanne", "Birgit", "Karin", "Ursula",
	"Helga", "Renate", "Ingrid", "Elke", "Gabriele", "Martina", "Heike",
	"Silke", "Tanja", "Nadine", "Melanie", "Franziska", "Charlotte", "Marie",
	"Luise", "Clara", "Klara", "Paula", "Frieda", "Greta", "Mathilda",
}

var maleFirstNames = []string{
	"Thomas", "Michael", "Andreas", "Stefan", "Christian", "Daniel",
	"Martin", "Markus", "Matthias", "Alexander", "Peter", "Wolfgang",
	"Klaus", "Jürgen", "Dieter", "Hans", "Werner", "Uwe", "Frank", "Bernd",
	"Jan", "Jonas", "Lukas", "Leon", "Finn", "Paul", "Felix", "Maximilian",
	"Max", "Moritz", "Tim", "Tom", "Niklas", "David", "Julian", "Simon",
	"Florian", "Tobias", "Sebastian", "Philipp", "Fabian", "Benjamin",
	"Johannes", "Georg", "Heinrich", "Karl", "Otto", "Friedrich", "Ludwig",
}

var genderByName = buildGenderIndex()

func buildGenderIndex() map[string]gender {
	index := make(map[string]gender, len(femaleFirstNames)+len(maleFirstNames))
	for _, name := range femaleFirstNames {
		index[strings.ToLower(name)] = genderFemale
	}
	for _, name := range maleFirstNames {
		index[strings.ToLower(name)] = genderMale
	}
	return index
}

// guessGender classifies a matched first-name quote. Multi-word quotes are
// judged by their first word.
func guessGender(quote string) gender {
	fields := strings.Fields(strings.TrimSpace(quote))
	if len(fields) == 0 {
		return genderUnknown
	}
	return genderByName[strings.ToLower(fields[0])]
}
