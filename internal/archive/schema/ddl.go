package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// Placeholder is replaced with the board name when a template is rendered.
const Placeholder = "%%BOARD%%"

//go:embed schema.sql
var defaultTemplate string

// DefaultTemplate returns the embedded destination DDL template.
func DefaultTemplate() string {
	return defaultTemplate
}

// LoadTemplate reads a DDL template from path, or returns the embedded
// template when path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	// #nosec G304 - operator-supplied path from config
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema template: %w", err)
	}
	if !strings.Contains(string(data), Placeholder) {
		return "", fmt.Errorf("schema template %s has no %s placeholder", path, Placeholder)
	}
	return string(data), nil
}

// Render substitutes the board name into template and splits the result into
// individual statements. Blank statements are dropped.
func Render(template, board string) []string {
	sql := strings.ReplaceAll(template, Placeholder, board)

	var stmts []string
	for _, s := range strings.Split(sql, ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
