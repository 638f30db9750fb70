// internal/service/template_service.go
package service

import (
	"regexp"
)

// Personalization tokens understood in subject and body templates.
const (
	TokenFirstName = "firstName"
	TokenLastName  = "lastName"
	TokenEmail     = "email"
	TokenCompany   = "company"
	TokenPosition  = "position"
)

var knownTokens = map[string]bool{
	TokenFirstName: true,
	TokenLastName:  true,
	TokenEmail:     true,
	TokenCompany:   true,
	TokenPosition:  true,
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z]+)\s*\}\}`)

// Personalize replaces every {{token}} in template with its value from fields.
// Unknown tokens are kept verbatim and a known token without a value becomes "".
// Substituted values are never expanded again.
func Personalize(template string, fields map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]
		if !knownTokens[name] {
			return match
		}
		return fields[name]
	})
}
