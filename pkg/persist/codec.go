// Package persist serializes state to files with crash-safe replacement.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned by CodecFor for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown format")

// Codec converts state to and from a byte stream. Decoding rejects fields
// the target type does not declare.
type Codec interface {
	Encode(w io.Writer, state any) error
	Decode(r io.Reader, state any) error
	// Format returns the codec's format name.
	Format() string
}

// CodecFor returns the codec for a format name, case-insensitively.
func CodecFor(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return NewJSONCodec(), nil
	case FormatYAML, "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// JSONCodec writes two-space indented JSON.
type JSONCodec struct{}

// NewJSONCodec returns a JSONCodec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode implements Codec.
func (*JSONCodec) Encode(w io.Writer, state any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(state)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.
func (*JSONCodec) Decode(r io.Reader, state any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	err := dec.Decode(state)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Format implements Codec.
func (*JSONCodec) Format() string { return FormatJSON }

// YAMLCodec writes block-style YAML with two-space indentation.
type YAMLCodec struct{}

// NewYAMLCodec returns a YAMLCodec.
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Encode implements Codec.
func (*YAMLCodec) Encode(w io.Writer, state any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := errors.Join(enc.Encode(state), enc.Close())
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}

	return nil
}

// Decode implements Codec.
func (*YAMLCodec) Decode(r io.Reader, state any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(state)
	if err != nil {
		return fmt.Errorf("yaml decode: %w", err)
	}

	return nil
}

// Format implements Codec.
func (*YAMLCodec) Format() string { return FormatYAML }
