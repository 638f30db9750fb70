// Package extractor pulls email addresses out of pasted, unstructured text.
package extractor

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// ExtractEmails returns the addresses found in text, lowercased and
// deduplicated in order of first appearance.
func ExtractEmails(text string) []string {
	if text == "" {
		return []string{}
	}

	matches := emailPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	emails := make([]string, 0, len(matches))
	for _, m := range matches {
		email := strings.ToLower(m)
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		if len(email) < 5 || strings.Count(email, "@") != 1 {
			continue
		}
		emails = append(emails, email)
	}
	return emails
}

// GenerateCSV renders emails as a single-column CSV with a header row.
// An empty list renders as an empty string.
func GenerateCSV(emails []string) string {
	if len(emails) == 0 {
		return ""
	}
	return "Email Address\n" + strings.Join(emails, "\n")
}
