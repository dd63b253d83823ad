// Package loader gets tree payloads into the explorer: from files on disk,
// from the analysis backend, or by scanning a local directory.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
)

// PayloadDirEnvVar names a directory searched for payloads when no path is
// given on the command line.
const PayloadDirEnvVar = "TREESCOPE_DIR"

// PreferredPayloadNames defines the lookup order inside a directory.
var PreferredPayloadNames = []string{"tree.json", "repo_overview.json", "overview.json"}

// DefaultMaxPayloadSize bounds how much of a payload is read (10MB).
const DefaultMaxPayloadSize = 1024 * 1024 * 10

// ErrPayloadTooLarge is returned when a payload exceeds the read limit.
var ErrPayloadTooLarge = errors.New("payload too large")

// ReadOptions configures ReadPayload.
type ReadOptions struct {
	// MaxSize is the largest accepted payload in bytes.
	// If 0, uses DefaultMaxPayloadSize.
	MaxSize int64
}

// ReadPayload reads a whole payload from r, stripping a UTF-8 BOM.
// The bytes are not validated; hierarchy.Build does that.
func ReadPayload(r io.Reader, opts ReadOptions) ([]byte, error) {
	limit := opts.MaxSize
	if limit <= 0 {
		limit = DefaultMaxPayloadSize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("error reading payload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (exceeds %d bytes)", ErrPayloadTooLarge, limit)
	}
	return stripBOM(data), nil
}

// LoadFile reads the payload stored at path.
func LoadFile(path string) ([]byte, error) {
	return LoadFileWithOptions(path, ReadOptions{})
}

// LoadFileWithOptions is LoadFile with a custom size limit.
func LoadFileWithOptions(path string, opts ReadOptions) ([]byte, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no tree payload found at %s", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload file: %w", err)
	}
	defer file.Close()

	return ReadPayload(file, opts)
}

// LoadTree reads and builds the tree stored at path.
func LoadTree(path string, opts ...hierarchy.BuildOption) (*hierarchy.Tree, error) {
	data, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return hierarchy.Build(data, opts...)
}

// ResolvePath turns a command-line argument into a payload file. A directory
// is searched with FindPayload; an empty argument falls back to
// $TREESCOPE_DIR.
func ResolvePath(arg string) (string, error) {
	if arg == "" {
		arg = os.Getenv(PayloadDirEnvVar)
		if arg == "" {
			return "", fmt.Errorf("no payload given and %s is not set", PayloadDirEnvVar)
		}
	}
	info, err := os.Stat(arg)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", arg, err)
	}
	if info.IsDir() {
		return FindPayload(arg)
	}
	return arg, nil
}

// FindPayload locates a tree payload inside dir. Preferred names win;
// otherwise the first non-empty .json file is used. Backups and editor
// leftovers are skipped.
func FindPayload(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read payload directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.HasPrefix(name, ".") ||
			strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no tree payload found in %s", dir)
	}

	nonEmpty := func(name string) (string, bool) {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		return path, err == nil && info.Size() > 0
	}
	for _, preferred := range PreferredPayloadNames {
		for _, name := range candidates {
			if name != preferred {
				continue
			}
			if path, ok := nonEmpty(name); ok {
				return path, nil
			}
		}
	}
	for _, name := range candidates {
		if path, ok := nonEmpty(name); ok {
			return path, nil
		}
	}
	return filepath.Join(dir, candidates[0]), nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
