package persist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// tempPattern names the sibling file a new version is staged in.
const tempPattern = ".*.tmp"

// WriteFileAtomic encodes state and replaces path with the result. The data is
// staged in a temporary file in the same directory, synced, then renamed over
// path, so a crash leaves either the previous file or the new one.
func WriteFileAtomic(path string, codec Codec, state any, perm os.FileMode) error {
	var buf bytes.Buffer

	err := codec.Encode(&buf, state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(path)

	err = os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+tempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()
	committed := false

	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	_, err = tmp.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	err = tmp.Chmod(perm)
	if err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	err = tmp.Sync()
	if err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	committed = true

	return syncDir(dir)
}

// syncDir flushes the directory entry so the rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open state dir: %w", err)
	}
	defer d.Close()

	err = d.Sync()
	if err != nil {
		return fmt.Errorf("sync state dir: %w", err)
	}

	return nil
}
