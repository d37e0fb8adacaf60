package data

import (
	"embed"
	"os"
)

//go:embed yaml/*.yaml
var defaultsFS embed.FS

// readTable reads a table file from disk, or the embedded default when
// path is empty.
func readTable(path, embedded string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return defaultsFS.ReadFile(embedded)
}
