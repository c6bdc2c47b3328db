package migrate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path via a tempfile-in-target-dir +
// os.Rename, matching spec.md §9's "Atomic file writes" design note: on
// filesystems without atomic rename semantics this contract is
// unimplementable, so no fallback path is offered. Secrets-bearing files
// use mode 0600 (spec.md §4.6.4 step 3).
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%d.%s.tmp", filepath.Base(path), os.Getpid(), token))

	if err := os.WriteFile(tmp, data, mode); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write tempfile for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename tempfile into place for %s: %w", path, err)
	}
	return os.Chmod(path, mode)
}

func randomToken() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate tempfile token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
