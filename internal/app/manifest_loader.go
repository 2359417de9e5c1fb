package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadPackageList reads package names from a manifest file, one per line.
// Lines may be CSV rows, in which case the first column is the name.
// Blank lines and lines starting with "#" are ignored.
func LoadPackageList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package list: %w", err)
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, ","); i >= 0 {
			line = line[:i]
		}
		name := strings.TrimSpace(line)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read package list: %w", err)
	}
	return names, nil
}
