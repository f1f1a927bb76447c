package rql

import "strings"

// LikeEscape is the escape character used by patterns from LikePattern.
// Backends render it with an ESCAPE clause.
const LikeEscape = `\`

var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	"%", `\%`,
	"_", `\_`,
)

// LikePattern translates an RQL like value into a SQL LIKE pattern:
//
//	*ab*  contains
//	*ab   ends with
//	ab*   starts with
//	ab    contains
//
// Interior '*' match any run of characters. SQL wildcards in the value are
// escaped with LikeEscape.
func LikePattern(value string) string {
	leading := strings.HasPrefix(value, "*")
	trailing := len(value) > 1 && strings.HasSuffix(value, "*")
	text := value
	if leading {
		text = text[1:]
	}
	if trailing {
		text = text[:len(text)-1]
	}
	if !leading && !trailing {
		leading, trailing = true, true
	}

	parts := strings.Split(text, "*")
	for i, part := range parts {
		parts[i] = likeEscaper.Replace(part)
	}
	pattern := strings.Join(parts, "%")

	if leading {
		pattern = "%" + pattern
	}
	if trailing {
		pattern += "%"
	}
	return pattern
}
