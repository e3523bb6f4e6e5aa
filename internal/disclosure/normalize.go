package disclosure

import (
	"regexp"
	"strings"
)

// corporateSuffixes lists legal entity suffixes stripped during name
// normalization. Order matters: once a trailing suffix is removed, a newly
// exposed suffix is only stripped if it appears later in the list, matching
// the curated tracker's own display conventions closely enough in practice.
var corporateSuffixes = []string{
	"INC", "INC.", "INCORPORATED",
	"CORP", "CORP.", "CORPORATION",
	"LLC", "L.L.C.",
	"LTD", "LTD.", "LIMITED",
	"CO", "CO.", "COMPANY",
	"S.A.", "SA",
	"PLC", "P.L.C.",
	"N.V.", "NV",
	"AG", "A.G.",
	"GMBH",
	"HOLDINGS", "HOLDING",
	"GROUP", "INTERNATIONAL", "INTL",
}

var (
	punctuationRe = regexp.MustCompile(`[.,'"()&]`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
)

// NormalizeName canonicalizes a company name for fuzzy comparison:
// uppercase, trailing corporate suffixes stripped, punctuation replaced with
// whitespace, whitespace collapsed. Pure and deterministic.
func NormalizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))

	for _, suffix := range corporateSuffixes {
		name = stripTrailingSuffix(name, suffix)
	}

	name = punctuationRe.ReplaceAllString(name, " ")
	name = multiSpaceRe.ReplaceAllString(name, " ")

	return strings.TrimSpace(name)
}

// stripTrailingSuffix removes suffix from the end of name when it stands as
// its own trailing token, preceded by whitespace or a comma. A name that is
// nothing but the suffix is left alone.
func stripTrailingSuffix(name, suffix string) string {
	if !strings.HasSuffix(name, suffix) {
		return name
	}
	head := name[:len(name)-len(suffix)]
	if head == "" {
		return name
	}
	if sep := head[len(head)-1]; sep != ' ' && sep != ',' && sep != '\t' {
		return name
	}
	return strings.TrimRight(head, " ,\t")
}

// matchStopwords are discarded before token-overlap matching.
var matchStopwords = map[string]struct{}{
	"THE": {}, "AND": {}, "OF": {}, "FOR": {}, "A": {}, "AN": {},
}

// significantTokens splits a normalized name into tokens with stopwords
// removed.
func significantTokens(normalized string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		if _, stop := matchStopwords[tok]; stop {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}
