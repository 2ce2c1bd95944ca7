package types

import "strings"

// Modality describes the epistemic or logical status of a statement.
type Modality string

const (
	ModalityAssertion     Modality = "assertion"
	ModalityNegation      Modality = "negation"
	ModalityPossibility   Modality = "possibility"
	ModalitySpeculation   Modality = "speculation"
	ModalityQuestion      Modality = "question"
	ModalityHypothetical  Modality = "hypothetical"
	ModalityContradiction Modality = "contradiction"
	ModalityFuture        Modality = "future"
	ModalityPast          Modality = "past"
	ModalityPresent       Modality = "present"
)

// KnownModalities lists the standard tags. Free-form tags are also accepted.
var KnownModalities = []Modality{
	ModalityAssertion,
	ModalityNegation,
	ModalityPossibility,
	ModalitySpeculation,
	ModalityQuestion,
	ModalityHypothetical,
	ModalityContradiction,
	ModalityFuture,
	ModalityPast,
	ModalityPresent,
}

// NormalizeModality lowercases, trims and deduplicates tags, keeping the
// first-seen order. An empty set defaults to assertion.
func NormalizeModality(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		out = append(out, string(ModalityAssertion))
	}
	return out
}

// AddModality appends a tag if it is not present yet.
func AddModality(tags []string, m Modality) []string {
	for _, tag := range tags {
		if tag == string(m) {
			return tags
		}
	}
	return append(tags, string(m))
}

var pronouns = map[string]struct{}{
	"i": {}, "me": {}, "my": {}, "mine": {}, "myself": {},
	"you": {}, "your": {}, "yours": {}, "yourself": {}, "yourselves": {},
	"he": {}, "him": {}, "his": {}, "himself": {},
	"she": {}, "her": {}, "hers": {}, "herself": {},
	"it": {}, "its": {}, "itself": {},
	"we": {}, "us": {}, "our": {}, "ours": {}, "ourselves": {},
	"they": {}, "them": {}, "their": {}, "theirs": {}, "themselves": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"who": {}, "whom": {}, "someone": {}, "somebody": {}, "something": {},
	"one": {}, "the man": {}, "the woman": {}, "the person": {}, "the thing": {},
}

// IsPronoun reports whether name is a bare pronoun or a non-specific label.
func IsPronoun(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Trim(n, ".,;:!?\"'")
	_, ok := pronouns[n]
	return ok
}
