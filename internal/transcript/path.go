package transcript

import (
	"fmt"

	"github.com/vigil-term/vigil/internal/paths"
)

// DefaultDir returns the default history directory.
func DefaultDir() (string, error) {
	dir, err := paths.HistoryDir()
	if err != nil {
		return "", fmt.Errorf("resolve history directory: %w", err)
	}

	return dir, nil
}
