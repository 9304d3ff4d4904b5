// Package mnemonic validates BIP-39 mnemonic phrases against a wordlist.
package mnemonic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39/wordlists"
)

// ErrUnknownLanguage is returned when a language name has no wordlist.
var ErrUnknownLanguage = errors.New("unknown mnemonic language")

// Language names a BIP-39 wordlist.
type Language string

// Supported languages.
const (
	English            Language = "english"
	Japanese           Language = "japanese"
	Korean             Language = "korean"
	Spanish            Language = "spanish"
	ChineseSimplified  Language = "chinese_simplified"
	ChineseTraditional Language = "chinese_traditional"
	French             Language = "french"
	Italian            Language = "italian"
	Czech              Language = "czech"
)

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = English

var wordlistsByLanguage = map[Language][]string{
	English:            wordlists.English,
	Japanese:           wordlists.Japanese,
	Korean:             wordlists.Korean,
	Spanish:            wordlists.Spanish,
	ChineseSimplified:  wordlists.ChineseSimplified,
	ChineseTraditional: wordlists.ChineseTraditional,
	French:             wordlists.French,
	Italian:            wordlists.Italian,
	Czech:              wordlists.Czech,
}

// Languages returns all supported languages in a stable order.
func Languages() []Language {
	return []Language{
		English, Japanese, Korean, Spanish, ChineseSimplified,
		ChineseTraditional, French, Italian, Czech,
	}
}

// ParseLanguage resolves a language name case-insensitively.
// Dashes are accepted in place of underscores ("chinese-simplified").
func ParseLanguage(name string) (Language, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if normalized == "" {
		return DefaultLanguage, nil
	}

	lang := Language(normalized)
	if _, ok := wordlistsByLanguage[lang]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
	}

	return lang, nil
}

// Wordlist returns the 2048-word list for the language.
func Wordlist(lang Language) ([]string, error) {
	words, ok := wordlistsByLanguage[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, string(lang))
	}

	return words, nil
}
