package security

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// JoinWithinDirectory joins name onto dir and rejects results that escape
// dir. The check is lexical so it works the same for on-disk and in-memory
// filesystems; names taken from suite files must not climb out with "..".
func JoinWithinDirectory(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("path traversal detected: %s is absolute", name)
	}

	joined := filepath.Join(dir, name)
	relPath, err := filepath.Rel(filepath.Clean(dir), joined)
	if err != nil {
		return "", fmt.Errorf("path is outside directory: %w", err)
	}
	if relPath == "." || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s attempts to escape %s", name, dir)
	}
	return joined, nil
}

// SanitizeCaseName maps every character that is not a Unicode letter or
// number to an underscore. Runs are not collapsed, so distinct case names
// of equal length stay distinct when they differ in letters or digits.
func SanitizeCaseName(s string) string {
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// CaseOutputName is the file name a verification case writes its output to.
func CaseOutputName(caseName string) string {
	return SanitizeCaseName(caseName) + ".ply"
}
