// Package mention locates @token spans in free text and classifies them
// against the known profiles and tags. The same matcher drives inline
// highlighting, the "assigned to me" filter, and notification targeting, so
// all three always agree.
package mention

import (
	"strings"
	"unicode"

	"huddle/client/internal/store"
)

const (
	markOpen  = `<mark class="mention">`
	markClose = `</mark>`
)

// Directory is the lookup view over the profile and tag caches.
type Directory struct {
	profiles []store.Profile
	tags     []store.Tag
}

func NewDirectory(profiles []store.Profile, tags []store.Tag) *Directory {
	return &Directory{profiles: profiles, tags: tags}
}

// Matches reports whether token resolves to any profile (display name or
// email) or tag name, by exact case-insensitive comparison.
func (d *Directory) Matches(token string) bool {
	for _, p := range d.profiles {
		if strings.EqualFold(token, p.DisplayName) || strings.EqualFold(token, p.Email) {
			return true
		}
	}
	for _, t := range d.tags {
		if strings.EqualFold(token, t.Name) {
			return true
		}
	}
	return false
}

// tokens yields every @token span in text. A token is the maximal run of
// non-whitespace characters following '@'; a bare '@' yields nothing.
func tokens(text string) []string {
	var out []string
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '@' {
			continue
		}
		j := i + 1
		for j < len(runes) && !unicode.IsSpace(runes[j]) {
			j++
		}
		if j > i+1 {
			out = append(out, string(runes[i+1:j]))
		}
		i = j - 1
	}
	return out
}

// HasMention reports whether content mentions the given profile: its display
// name, its email, or any tag it is a member of. Token matching is exact and
// case-insensitive; partial-token matches never count.
func HasMention(content, displayName, email string, tagNames []string) bool {
	for _, token := range tokens(content) {
		if displayName != "" && strings.EqualFold(token, displayName) {
			return true
		}
		if email != "" && strings.EqualFold(token, email) {
			return true
		}
		for _, tag := range tagNames {
			if strings.EqualFold(token, tag) {
				return true
			}
		}
	}
	return false
}

// Highlight wraps every recognized mention span in an inline marker, leaving
// all other text untouched. Running it on its own output is a no-op:
// already-wrapped spans are copied through verbatim.
func Highlight(text string, d *Directory) string {
	var b strings.Builder
	b.Grow(len(text))

	rest := text
	for len(rest) > 0 {
		// Copy an existing marker through unchanged.
		if strings.HasPrefix(rest, markOpen) {
			end := strings.Index(rest, markClose)
			if end < 0 {
				b.WriteString(rest)
				break
			}
			b.WriteString(rest[:end+len(markClose)])
			rest = rest[end+len(markClose):]
			continue
		}

		at := strings.IndexByte(rest, '@')
		if at < 0 {
			b.WriteString(rest)
			break
		}
		// Is there a marker before the next '@'? Handle it first.
		if open := strings.Index(rest, markOpen); open >= 0 && open < at {
			b.WriteString(rest[:open])
			rest = rest[open:]
			continue
		}

		b.WriteString(rest[:at])
		rest = rest[at:]

		token := leadingToken(rest[1:])
		if token != "" && d.Matches(token) {
			b.WriteString(markOpen)
			b.WriteString("@")
			b.WriteString(token)
			b.WriteString(markClose)
		} else {
			b.WriteString("@")
			b.WriteString(token)
		}
		rest = rest[1+len(token):]
	}
	return b.String()
}

// leadingToken returns the maximal non-whitespace prefix of s.
func leadingToken(s string) string {
	for i, r := range s {
		if unicode.IsSpace(r) {
			return s[:i]
		}
	}
	return s
}
