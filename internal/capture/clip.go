package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NextClipPath returns dir/clipN.ext where N is one more than the highest
// existing clip number with any extension. Numbering starts at 1.
func NextClipPath(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("scan clip directory: %w", err)
	}
	highest := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		digits, ok := strings.CutPrefix(stem, "clip")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil || n <= 0 {
			continue
		}
		highest = max(highest, n)
	}
	ext = strings.TrimPrefix(ext, ".")
	return filepath.Join(dir, fmt.Sprintf("clip%d.%s", highest+1, ext)), nil
}
