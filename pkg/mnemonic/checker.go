package mnemonic

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/safeconv"
)

// Wordlist geometry fixed by BIP-39.
const (
	wordlistSize = 2048
	bitsPerWord  = 11
	bitsPerByte  = 8

	// checksumDivisor relates entropy length to checksum length (CS = ENT / 32).
	checksumDivisor = 32
)

// validWordCounts lists the phrase lengths BIP-39 defines.
var validWordCounts = map[int]struct{}{12: {}, 15: {}, 18: {}, 21: {}, 24: {}}

// Checker validates phrases against a single wordlist. It holds no mutable
// state after construction and is safe for concurrent use.
type Checker struct {
	lang  Language
	index map[string]uint16
}

// NewChecker builds a checker for the given language.
func NewChecker(lang Language) (*Checker, error) {
	words, err := Wordlist(lang)
	if err != nil {
		return nil, err
	}

	if len(words) != wordlistSize {
		return nil, fmt.Errorf("wordlist %s: expected %d words, got %d", lang, wordlistSize, len(words))
	}

	index := make(map[string]uint16, wordlistSize)

	for i, w := range words {
		index[norm.NFKD.String(w)] = safeconv.MustIntToUint16(i)
	}

	return &Checker{lang: lang, index: index}, nil
}

// MustNewChecker is NewChecker that panics on error. Intended for tests and
// package-level defaults where the language is a constant.
func MustNewChecker(lang Language) *Checker {
	c, err := NewChecker(lang)
	if err != nil {
		panic(err)
	}

	return c
}

// Language returns the checker's wordlist language.
func (c *Checker) Language() Language {
	return c.lang
}

// Contains reports whether word is in the wordlist after NFKD normalization.
func (c *Checker) Contains(word string) bool {
	_, ok := c.index[norm.NFKD.String(word)]

	return ok
}

// Valid reports whether phrase is a well-formed mnemonic with a correct
// checksum. Words are separated by any Unicode whitespace.
func (c *Checker) Valid(phrase string) bool {
	return c.ValidWords(strings.Fields(phrase))
}

// ValidWords reports whether the ordered words form a valid mnemonic.
func (c *Checker) ValidWords(words []string) bool {
	if _, ok := validWordCounts[len(words)]; !ok {
		return false
	}

	totalBits := len(words) * bitsPerWord
	entropyBits := totalBits * checksumDivisor / (checksumDivisor + 1)
	checksumBits := uint(totalBits - entropyBits)
	entropyBytes := entropyBits / bitsPerByte

	entropy := make([]byte, 0, entropyBytes)

	var (
		acc   uint64
		nbits uint
	)

	for _, w := range words {
		idx, ok := c.index[norm.NFKD.String(w)]
		if !ok {
			return false
		}

		acc = acc<<bitsPerWord | uint64(idx)
		nbits += bitsPerWord

		for nbits >= bitsPerByte && len(entropy) < entropyBytes {
			nbits -= bitsPerByte
			entropy = append(entropy, byte(acc>>nbits))
			acc &= 1<<nbits - 1
		}
	}

	if nbits != checksumBits {
		return false
	}

	sum := sha256.Sum256(entropy)
	expected := uint64(sum[0] >> (bitsPerByte - checksumBits))

	return acc == expected
}
