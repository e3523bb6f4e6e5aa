package disclosure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeName_Uppercase(t *testing.T) {
	assert.Equal(t, "ACME WIDGETS", NormalizeName("Acme Widgets"))
}

func TestNormalizeName_StripInc(t *testing.T) {
	assert.Equal(t, "ACME", NormalizeName("Acme Inc"))
	assert.Equal(t, "ACME", NormalizeName("Acme Inc."))
	assert.Equal(t, "ACME", NormalizeName("Acme Incorporated"))
	assert.Equal(t, "ACME", NormalizeName("Acme, Inc."))
}

func TestNormalizeName_StripCorp(t *testing.T) {
	assert.Equal(t, "ACME", NormalizeName("Acme Corp"))
	assert.Equal(t, "ACME", NormalizeName("Acme Corporation"))
}

func TestNormalizeName_StripInternationalSuffixes(t *testing.T) {
	assert.Equal(t, "SIEMENS", NormalizeName("Siemens AG"))
	assert.Equal(t, "BAYER", NormalizeName("Bayer GmbH"))
	assert.Equal(t, "SHELL", NormalizeName("Shell PLC"))
	assert.Equal(t, "PHILIPS", NormalizeName("Philips N.V."))
	assert.Equal(t, "TOTAL", NormalizeName("Total S.A."))
}

func TestNormalizeName_StripStackedSuffixes(t *testing.T) {
	// INC is stripped first, then the newly trailing HOLDINGS.
	assert.Equal(t, "ACME", NormalizeName("Acme Holdings Inc"))
	assert.Equal(t, "ACME", NormalizeName("Acme Group Holdings"))
}

func TestNormalizeName_SuffixRequiresSeparator(t *testing.T) {
	// Suffix must stand as its own trailing token.
	assert.Equal(t, "ZINC", NormalizeName("Zinc"))
	assert.Equal(t, "MUSIC", NormalizeName("Music Co"))
	assert.Equal(t, "INC", NormalizeName("INC"))
}

func TestNormalizeName_Punctuation(t *testing.T) {
	assert.Equal(t, "SMITH JONES", NormalizeName("Smith & Jones"))
	assert.Equal(t, "O REILLY AUTO PARTS", NormalizeName("O'Reilly Auto Parts"))
	assert.Equal(t, "ACME USA", NormalizeName("Acme (USA) Inc."))
}

func TestNormalizeName_EquivalentForms(t *testing.T) {
	assert.Equal(t, NormalizeName("ACME INC"), NormalizeName("Acme, Inc."))
}

func TestNormalizeName_IdempotentOnNormalizedOutput(t *testing.T) {
	for _, raw := range []string{
		"Acme Widgets, Inc.",
		"Smith & Jones LLC",
		"Global Widgets Corporation",
		"O'Reilly Auto Parts",
	} {
		once := NormalizeName(raw)
		assert.Equal(t, once, NormalizeName(once), "input %q", raw)
	}
}

func TestSignificantTokens_DropsStopwords(t *testing.T) {
	tokens := significantTokens("THE BANK OF WIDGETS")
	assert.Len(t, tokens, 2)
	assert.Contains(t, tokens, "BANK")
	assert.Contains(t, tokens, "WIDGETS")
}
