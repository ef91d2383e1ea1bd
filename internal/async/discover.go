package async

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/fichas-scanner/constants"
)

// Discover lists image files under root, skipping hidden entries. Results
// are sorted for a stable processing order.
func Discover(root string, recursive bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".") && path != root
		if d.IsDir() {
			if path != root && (hidden || !recursive) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !constants.IsImagePath(path) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
