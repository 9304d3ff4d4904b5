package checkpoint

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/persist"
)

// File and directory permissions for checkpoint data.
const (
	filePerm = 0o600
	dirName  = ".mnemoscan"
	fileName = "checkpoint.json"
)

//go:embed schema.json
var schemaJSON []byte

var recordSchema = mustCompileSchema(schemaJSON)

// DefaultPath returns the default checkpoint location (~/.mnemoscan/checkpoint.json).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, dirName, fileName)
}

// Store loads and saves a single checkpoint record at a fixed path.
// Only the scan coordinator uses it, so it is not synchronized.
type Store struct {
	path   string
	codec  persist.Codec
	logger *slog.Logger
}

// NewStore creates a store for the record at path. A nil logger discards output.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		path:   path,
		codec:  persist.NewJSONCodec(),
		logger: logger,
	}
}

// Path returns the record location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a record file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)

	return err == nil
}

// Load returns the stored record, or nil when none exists. A corrupt or
// unsupported record is logged and treated as absent; only read failures are
// returned as errors.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil //nolint:nilnil // absent record is not an error.
	}

	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	rec, decodeErr := s.decode(data)
	if decodeErr != nil {
		s.logger.WarnContext(ctx, "checkpoint: ignoring unusable record",
			"path", s.path, "error", decodeErr)

		return nil, nil //nolint:nilnil // unusable record is treated as absent.
	}

	return rec, nil
}

func (s *Store) decode(data []byte) (*Record, error) {
	result, err := recordSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
	}

	var rec Record

	err = s.codec.Decode(bytes.NewReader(data), &rec)
	if err != nil {
		return nil, err
	}

	if rec.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidRecord, rec.Version)
	}

	err = rec.Validate()
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Save atomically replaces the stored record.
func (s *Store) Save(ctx context.Context, rec Record) error {
	rec.Version = FormatVersion

	err := rec.Validate()
	if err != nil {
		return err
	}

	err = persist.WriteFileAtomic(s.path, s.codec, rec, filePerm)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	s.logger.DebugContext(ctx, "checkpoint: saved",
		"ordinal", rec.Committed, "processed", rec.Processed, "valid", rec.Valid)

	return nil
}

// Clear removes the stored record. A missing record is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}

	return nil
}

func mustCompileSchema(raw []byte) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("checkpoint schema: %v", err))
	}

	return schema
}
