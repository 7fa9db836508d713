package repository

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Widths mirror the narrowest column a value lands in, so both drivers
// reject the same input.
const (
	maxShortLen    = 255
	maxAddressLen  = 512
	maxPhoneLen    = 64
	maxTextLen     = 10000
	maxListItems   = 100
	maxListItemLen = 100
)

type lengthRule struct {
	field string
	value string
	max   int
}

// checkLengths reports the first value longer than its limit, counted in
// characters as VARCHAR does.
func checkLengths(rules ...lengthRule) error {
	for _, r := range rules {
		if utf8.RuneCountInString(r.value) > r.max {
			return invalid(r.field, "must be at most %d characters", r.max)
		}
	}
	return nil
}

// checkList bounds a list stored as a JSON column.
func checkList(field string, items []string) error {
	if len(items) > maxListItems {
		return invalid(field, "must have at most %d entries", maxListItems)
	}
	for _, it := range items {
		if utf8.RuneCountInString(it) > maxListItemLen {
			return invalid(field, "entries must be at most %d characters", maxListItemLen)
		}
	}
	return nil
}

// emailPattern is the address shape accepted for guests and accounts.
var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func validEmail(s string) bool { return emailPattern.MatchString(s) }

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.  An
// empty string yields nil, which clears the stored value.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid(field, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

// cleanList trims entries and drops empty ones, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// cleanTags lowercases, trims and de-duplicates tags, keeping the order of
// first appearance.
func cleanTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
