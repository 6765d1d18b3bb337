package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength = 20
	// DefaultName replaces a blank display name.
	DefaultName = "Guest"
	// DefaultNamePattern accepts 4 to 10 digits, e.g. a table or phone extension.
	DefaultNamePattern = `^[0-9]{4,10}$`
	// DefaultNameRule describes DefaultNamePattern to players.
	DefaultNameRule = "name must be 4-10 digits"
)

// NamePolicy normalizes display names and enforces an optional format.
type NamePolicy struct {
	pattern *regexp.Regexp
	rule    string
}

// NewNamePolicy compiles pattern; an empty pattern only normalizes.
func NewNamePolicy(pattern, rule string) (NamePolicy, error) {
	if pattern == "" {
		return NamePolicy{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return NamePolicy{}, fmt.Errorf("compile name pattern: %w", err)
	}
	if rule == "" {
		rule = "name must match " + pattern
	}
	return NamePolicy{pattern: re, rule: rule}, nil
}

// Normalize trims, bounds and validates a display name.
func (p NamePolicy) Normalize(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	if p.pattern == nil {
		if name == "" {
			name = DefaultName
		}
		return name, nil
	}
	if !p.pattern.MatchString(name) {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, p.rule)
	}
	return name, nil
}
