package extractor

import (
	"strings"

	"github.com/soundprediction/noirgraph/pkg/types"
)

var (
	copula = map[string]string{
		"am": "be", "is": "be", "are": "be", "was": "be", "were": "be",
		"be": "be", "been": "be", "being": "be",
		"has": "have", "have": "have", "had": "have", "having": "have",
		"do": "do", "does": "do", "did": "do",
	}

	modals = map[string]types.Modality{
		"may":    types.ModalityPossibility,
		"might":  types.ModalityPossibility,
		"could":  types.ModalityPossibility,
		"can":    "",
		"will":   types.ModalityFuture,
		"shall":  types.ModalityFuture,
		"would":  types.ModalityHypothetical,
		"should": "",
		"must":   "",
	}

	negations = map[string]struct{}{
		"not": {}, "never": {}, "cannot": {},
	}

	// irregular past participles that follow "be" or "have" as auxiliaries.
	participles = map[string]struct{}{
		"gone": {}, "seen": {}, "done": {}, "taken": {}, "given": {}, "known": {},
		"made": {}, "said": {}, "found": {}, "left": {}, "lost": {}, "kept": {},
		"told": {}, "thought": {}, "brought": {}, "bought": {}, "caught": {},
		"come": {}, "become": {}, "run": {}, "met": {}, "heard": {}, "held": {},
		"led": {}, "sent": {}, "spent": {}, "stood": {}, "understood": {},
		"written": {}, "got": {}, "gotten": {}, "put": {}, "set": {}, "let": {},
		"shut": {}, "hit": {}, "cut": {}, "read": {}, "struck": {}, "fled": {},
		"slain": {}, "stolen": {}, "hidden": {}, "shot": {}, "sat": {}, "won": {},
	}

	// words that start a noun phrase, so a preceding "do" is the main verb.
	determiners = map[string]struct{}{
		"a": {}, "an": {}, "the": {}, "his": {}, "her": {}, "its": {}, "their": {},
		"my": {}, "your": {}, "our": {}, "this": {}, "that": {}, "these": {},
		"those": {}, "some": {}, "no": {}, "any": {}, "nothing": {}, "something": {},
		"everything": {}, "it": {}, "him": {}, "them": {}, "me": {}, "us": {},
	}
)

// auxiliary reports whether head is a copula or do/have form used as an
// auxiliary for the verb in next.
func auxiliary(head, next string) bool {
	switch copula[head] {
	case "do":
		if _, ok := determiners[next]; ok {
			return false
		}
		_, isCopula := copula[next]
		return !isCopula && !isPreposition(next)
	case "be", "have":
		if _, ok := copula[next]; ok {
			return true
		}
		return isParticiple(next)
	}
	return false
}

func isParticiple(tok string) bool {
	if _, ok := participles[tok]; ok {
		return true
	}
	switch {
	case strings.HasSuffix(tok, "ed") && len(tok) > 3:
		return true
	case strings.HasSuffix(tok, "ing") && len(tok) > 5:
		return true
	case strings.HasSuffix(tok, "en") && len(tok) > 4:
		return true
	}
	return false
}

func isPreposition(tok string) bool {
	switch tok {
	case "in", "on", "at", "with", "from", "to", "of", "by", "for", "near",
		"inside", "under", "behind", "about", "into", "like":
		return true
	}
	return false
}

// NormalizePredicate strips auxiliary verbs and negation from a predicate.
// The modality tags implied by what was removed are returned alongside.
//
//	"did not see"      -> "see", [negation]
//	"could have taken" -> "taken", [possibility]
//	"was in"           -> "be in", []
//	"had dinner with"  -> "have dinner with", []
//	"isn't"            -> "be", [negation]
func NormalizePredicate(predicate string) (string, []types.Modality) {
	var (
		implied []types.Modality
		tokens  []string
	)
	for _, tok := range strings.Fields(strings.ToLower(predicate)) {
		tok = strings.Trim(strings.ReplaceAll(tok, "’", "'"), ".,;:!?\"")
		if tok == "" {
			continue
		}
		if _, ok := negations[tok]; ok {
			implied = appendModality(implied, types.ModalityNegation)
			if tok == "cannot" {
				tokens = append(tokens, "can")
			}
			continue
		}
		if base, ok := strings.CutSuffix(tok, "n't"); ok {
			implied = appendModality(implied, types.ModalityNegation)
			switch base {
			case "wo":
				base = "will"
			case "ca":
				base = "can"
			case "sha":
				base = "shall"
			}
			if base != "" {
				tokens = append(tokens, base)
			}
			continue
		}
		tokens = append(tokens, tok)
	}

	// Drop leading auxiliaries while a main verb follows.
	for len(tokens) > 1 {
		head := tokens[0]
		if m, ok := modals[head]; ok {
			if m != "" {
				implied = appendModality(implied, m)
			}
			tokens = tokens[1:]
			continue
		}
		if auxiliary(head, tokens[1]) {
			tokens = tokens[1:]
			continue
		}
		break
	}

	if len(tokens) == 0 {
		return "", implied
	}
	if root, ok := copula[tokens[0]]; ok {
		tokens[0] = root
	} else if len(tokens) == 1 {
		if m, ok := modals[tokens[0]]; ok && m != "" {
			implied = appendModality(implied, m)
		}
	}
	return strings.Join(tokens, " "), implied
}

func appendModality(list []types.Modality, m types.Modality) []types.Modality {
	for _, existing := range list {
		if existing == m {
			return list
		}
	}
	return append(list, m)
}

// NormalizeDraft applies predicate normalization and merges the implied
// modality tags. An explicit "negation" wins over a leftover "assertion".
func NormalizeDraft(d types.StatementDraft) types.StatementDraft {
	pred, implied := NormalizePredicate(d.Predicate)
	if pred != "" {
		d.Predicate = pred
	}
	modality := append([]string(nil), d.Modality...)
	for _, m := range implied {
		modality = types.AddModality(modality, m)
	}
	modality = types.NormalizeModality(modality)
	if len(modality) > 1 && containsTag(modality, types.ModalityNegation) {
		modality = removeTag(modality, types.ModalityAssertion)
	}
	d.Modality = modality
	return d
}

func containsTag(tags []string, m types.Modality) bool {
	for _, t := range tags {
		if t == string(m) {
			return true
		}
	}
	return false
}

func removeTag(tags []string, m types.Modality) []string {
	out := tags[:0]
	for _, t := range tags {
		if t != string(m) {
			out = append(out, t)
		}
	}
	return out
}

// ExpandConjunctions splits compound subjects and objects joined by "and"
// or "&" into one draft per combination. Quoted objects are left intact.
func ExpandConjunctions(d types.StatementDraft) []types.StatementDraft {
	subjects := splitConjunction(d.Subject)
	objects := []string{d.Object}
	if !isQuoted(d.Object) {
		objects = splitConjunction(d.Object)
	}
	if len(subjects) == 1 && len(objects) == 1 {
		return []types.StatementDraft{d}
	}

	out := make([]types.StatementDraft, 0, len(subjects)*len(objects))
	for _, s := range subjects {
		for _, o := range objects {
			c := d
			c.Subject = s
			c.Object = o
			c.Modality = append([]string(nil), d.Modality...)
			out = append(out, c)
		}
	}
	return out
}

func splitConjunction(phrase string) []string {
	phrase = strings.TrimSpace(phrase)
	normalized := strings.ReplaceAll(phrase, " & ", " and ")
	if !strings.Contains(normalized, " and ") {
		return []string{phrase}
	}

	var parts []string
	for _, seg := range strings.Split(normalized, " and ") {
		for _, p := range strings.Split(seg, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	if len(parts) < 2 {
		return []string{phrase}
	}
	return parts
}

func isQuoted(s string) bool {
	return strings.ContainsAny(s, "\"“”")
}
