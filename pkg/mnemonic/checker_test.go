package mnemonic_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39/wordlists"
	"golang.org/x/text/unicode/norm"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/mnemonic"
)

// Reference vectors from the BIP-39 test suite (English, no passphrase needed).
var validVectors = []string{
	"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
	"legal winner thank year wave sausage worth useful legal winner thank yellow",
	"letter advice cage absurd amount doctor acoustic avoid letter advice cage above",
	"zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo wrong",
	"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon agent",
	"zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo when",
	"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art",
	"zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo vote",
}

func TestChecker_ValidVectors(t *testing.T) {
	t.Parallel()

	c := mnemonic.MustNewChecker(mnemonic.English)

	for _, phrase := range validVectors {
		assert.True(t, c.Valid(phrase), phrase)
	}
}

func TestChecker_Invalid(t *testing.T) {
	t.Parallel()

	c := mnemonic.MustNewChecker(mnemonic.English)

	tests := []struct {
		name   string
		phrase string
	}{
		{name: "empty", phrase: ""},
		{name: "eleven words", phrase: "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"},
		{name: "thirteen words", phrase: strings.Repeat("abandon ", 12) + "about"},
		{name: "bad checksum", phrase: strings.TrimSpace(strings.Repeat("abandon ", 12))},
		{name: "all zoo", phrase: strings.TrimSpace(strings.Repeat("zoo ", 12))},
		{name: "unknown word", phrase: "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon bitcoin"},
		{name: "uppercase word", phrase: "Abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"},
		{name: "numeric garbage", phrase: "1 2 3 4 5 6 7 8 9 10 11 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.False(t, c.Valid(tt.phrase))
		})
	}
}

func TestChecker_SingleWordSubstitutionBreaksChecksum(t *testing.T) {
	t.Parallel()

	c := mnemonic.MustNewChecker(mnemonic.English)

	// With eleven "abandon" words and a final word index below 16 the
	// entropy is all zero, whose checksum nibble is 0b0011 ("about").
	base := strings.Repeat("abandon ", 11)

	for idx, word := range wordlists.English[:16] {
		assert.Equal(t, idx == 3, c.Valid(base+word), word)
	}
}

func TestChecker_WhitespaceTolerance(t *testing.T) {
	t.Parallel()

	c := mnemonic.MustNewChecker(mnemonic.English)
	phrase := "  abandon\tabandon abandon  abandon abandon abandon abandon abandon abandon abandon abandon about \r"

	assert.True(t, c.Valid(phrase))
}

func TestChecker_ConcurrentUse(t *testing.T) {
	t.Parallel()

	c := mnemonic.MustNewChecker(mnemonic.English)

	var wg sync.WaitGroup

	errs := make(chan string, 64)

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				if !c.Valid(validVectors[0]) {
					errs <- "valid phrase rejected"
				}

				if c.Valid(validVectors[0] + " abandon") {
					errs <- "invalid phrase accepted"
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func TestChecker_NormalizesAccentedWords(t *testing.T) {
	t.Parallel()

	c := mnemonic.MustNewChecker(mnemonic.Spanish)
	first := wordlists.Spanish[0]

	assert.True(t, c.Contains(norm.NFC.String(first)))
	assert.True(t, c.Contains(norm.NFD.String(first)))
	assert.False(t, c.Contains("abandon"))
	assert.Equal(t, mnemonic.Spanish, c.Language())
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	lang, err := mnemonic.ParseLanguage("Chinese-Simplified")
	require.NoError(t, err)
	assert.Equal(t, mnemonic.ChineseSimplified, lang)

	lang, err = mnemonic.ParseLanguage("")
	require.NoError(t, err)
	assert.Equal(t, mnemonic.DefaultLanguage, lang)

	_, err = mnemonic.ParseLanguage("klingon")
	require.ErrorIs(t, err, mnemonic.ErrUnknownLanguage)
}

func TestLanguages_AllHaveWordlists(t *testing.T) {
	t.Parallel()

	for _, lang := range mnemonic.Languages() {
		words, err := mnemonic.Wordlist(lang)
		require.NoError(t, err, lang)
		assert.Len(t, words, 2048, lang)

		_, err = mnemonic.NewChecker(lang)
		require.NoError(t, err, lang)
	}
}
