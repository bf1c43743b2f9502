package dlp

import (
	"fmt"
	"strings"
)

// CodepointOffset is a character (rune) position within an inspected text.
// It is deliberately a distinct type from grounding.ByteOffset: findings are
// codepoint-indexed, grounding spans are byte-indexed, and the two must never
// be mixed.
type CodepointOffset int

// InfoType classifies a kind of sensitive data.
type InfoType string

// Info types known to the detection layer.
const (
	InfoTypeStreetAddress InfoType = "STREET_ADDRESS"
	InfoTypeFirstName     InfoType = "FIRST_NAME"
	InfoTypeLastName      InfoType = "LAST_NAME"
	InfoTypePhoneNumber   InfoType = "PHONE_NUMBER"
	InfoTypeEmailAddress  InfoType = "EMAIL_ADDRESS"
	InfoTypeIBAN          InfoType = "IBAN_CODE"
)

// infoTypeLabels maps info types to the user-facing German labels used in
// finding reports.
var infoTypeLabels = map[InfoType]string{
	InfoTypeStreetAddress: "Adresse",
	InfoTypeFirstName:     "Vorname",
	InfoTypeLastName:      "Nachname",
	InfoTypePhoneNumber:   "Telefonnummer",
	InfoTypeEmailAddress:  "E-Mail-Adresse",
	InfoTypeIBAN:          "IBAN",
}

// Label returns the localized label for the info type, falling back to the
// raw name for types without a translation.
func (t InfoType) Label() string {
	if label, ok := infoTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// Likelihood is the ordinal confidence a finding was reported with.
type Likelihood int

const (
	LikelihoodUnspecified Likelihood = iota
	LikelihoodVeryUnlikely
	LikelihoodUnlikely
	LikelihoodPossible
	LikelihoodLikely
	LikelihoodVeryLikely
)

var likelihoodNames = []string{
	"LIKELIHOOD_UNSPECIFIED",
	"VERY_UNLIKELY",
	"UNLIKELY",
	"POSSIBLE",
	"LIKELY",
	"VERY_LIKELY",
}

func (l Likelihood) String() string {
	if l < 0 || int(l) >= len(likelihoodNames) {
		return likelihoodNames[0]
	}
	return likelihoodNames[l]
}

// ParseLikelihood converts a likelihood name to its ordinal value.
func ParseLikelihood(name string) (Likelihood, error) {
	for i, n := range likelihoodNames {
		if n == name {
			return Likelihood(i), nil
		}
	}
	return LikelihoodUnspecified, fmt.Errorf("unknown likelihood: %s", name)
}

// Finding is one detected instance of sensitive data. Offsets are codepoint
// positions within the text the inspection ran against.
type Finding struct {
	InfoType   InfoType        `json:"info_type"`
	Quote      string          `json:"quote"`
	Start      CodepointOffset `json:"start"`
	End        CodepointOffset `json:"end"`
	Likelihood Likelihood      `json:"likelihood"`
}

// InspectResult is the outcome of one inspection call.
type InspectResult struct {
	Findings []Finding `json:"findings"`
	// Truncated signals that the per-request findings cap was hit and the
	// finding list is incomplete.
	Truncated bool `json:"truncated"`
}

// ReplacementMapping records pseudonym substitutions keyed by info type.
// When multiple findings share an info type the last substitution wins; this
// mirrors the documented behaviour of the pseudonymization mapping and is not
// silently "fixed".
type ReplacementMapping map[InfoType]string

// User-facing messages of the sensitive-data layer.
const (
	// NoticeAnonymized is returned as the info message when mask-mode
	// redaction changed the document.
	NoticeAnonymized = "Personenbezug wurde im Dokument automatisch anonymisiert."

	msgTruncatedFindings      = "Das Dokument beinhaltet zu viele sensible Daten und kann daher nicht verarbeitet werden."
	msgPseudonymizationFailed = "Fehler bei der Pseudonymisierung der Daten."

	findingsPreamble = "Anscheinend beinhaltet die Frage persönliche Daten: \n\n"
	findingsEpilogue = "Deshalb kann ich die Frage nicht an die AI weiterleiten!"
)

// FormatFindings renders findings as a human-readable report: one localized
// "<label> : <quote>" line per finding, wrapped in a fixed disclosure notice.
func FormatFindings(findings []Finding) string {
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, fmt.Sprintf("%s : %s", f.InfoType.Label(), f.Quote))
	}

	return findingsPreamble + strings.Join(lines, "\n") + "\n\n" + findingsEpilogue
}
