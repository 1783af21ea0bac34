package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

const maxSanitizePasses = 4

// sanitizeText strips markup from user free text and decodes the entities the
// policy leaves behind so stored text stays readable. Decoding can surface
// entity-encoded tags, so the policy is reapplied until the text is stable;
// text that never settles is returned in its escaped form.
func sanitizeText(input string) string {
	text := input
	for i := 0; i < maxSanitizePasses; i++ {
		decoded := html.UnescapeString(textPolicy.Sanitize(text))
		if decoded == text {
			return strings.TrimSpace(decoded)
		}
		text = decoded
	}
	return strings.TrimSpace(textPolicy.Sanitize(text))
}

func maskEmailAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return "***"
	}
	local := parts[0]
	if len(local) <= 2 {
		local = local[:1] + "***"
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	return local + "@" + parts[1]
}
