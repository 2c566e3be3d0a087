package mention

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CandidateKind distinguishes profile and tag candidates. Profiles always
// rank before tags in the candidate list.
type CandidateKind string

const (
	KindProfile CandidateKind = "profile"
	KindTag     CandidateKind = "tag"
)

// Candidate is one autocomplete suggestion. Name is the canonical text
// inserted on commit.
type Candidate struct {
	Kind CandidateKind
	ID   string
	Name string
}

// Keys the autocomplete reacts to.
type Key int

const (
	KeyDown Key = iota
	KeyUp
	KeyEnter
	KeyEscape
)

// Edit is a committed text change: the new content and the new cursor
// position within it.
type Edit struct {
	Text   string
	Cursor int
}

// Autocomplete is the @-mention suggestion state machine driven by input
// and key events from a text field.
type Autocomplete struct {
	directory *Directory

	open       bool
	candidates []Candidate
	active     int

	text   string
	cursor int
	start  int // byte offset of the '@' that opened the list
}

func NewAutocomplete(d *Directory) *Autocomplete {
	return &Autocomplete{directory: d}
}

func (a *Autocomplete) IsOpen() bool            { return a.open }
func (a *Autocomplete) Candidates() []Candidate { return a.candidates }
func (a *Autocomplete) ActiveIndex() int        { return a.active }

// HandleInput inspects the text around the cursor. The list opens while the
// cursor sits directly after an '@' with no intervening whitespace, filtered
// by case-insensitive substring match on the typed query.
func (a *Autocomplete) HandleInput(text string, cursor int) {
	if cursor > len(text) {
		cursor = len(text)
	}
	a.text = text
	a.cursor = cursor

	start, query, ok := mentionSpan(text, cursor)
	if !ok {
		a.close()
		return
	}

	candidates := a.filter(query)
	if len(candidates) == 0 {
		a.close()
		return
	}
	a.open = true
	a.start = start
	a.candidates = candidates
	if a.active >= len(candidates) {
		a.active = 0
	}
}

// HandleKey processes a key while the list is open. Down/Up cycle through
// candidates, Escape closes without changing text, Enter commits the active
// candidate and returns the resulting edit. The bool reports whether the key
// was consumed.
func (a *Autocomplete) HandleKey(key Key) (*Edit, bool) {
	if !a.open {
		return nil, false
	}
	switch key {
	case KeyDown:
		a.active = (a.active + 1) % len(a.candidates)
		return nil, true
	case KeyUp:
		a.active = (a.active - 1 + len(a.candidates)) % len(a.candidates)
		return nil, true
	case KeyEscape:
		a.close()
		return nil, true
	case KeyEnter:
		edit := a.InsertMention(a.candidates[a.active])
		return &edit, true
	}
	return nil, false
}

// InsertMention commits a candidate (Enter or click): the @query span is
// replaced with "@<canonical-name> " and the cursor lands just after the
// trailing space.
func (a *Autocomplete) InsertMention(c Candidate) Edit {
	inserted := "@" + c.Name + " "
	text := a.text[:a.start] + inserted + a.text[a.cursor:]
	cursor := a.start + len(inserted)
	a.close()
	a.text = text
	a.cursor = cursor
	return Edit{Text: text, Cursor: cursor}
}

func (a *Autocomplete) close() {
	a.open = false
	a.candidates = nil
	a.active = 0
}

// filter ranks matching profiles before matching tags.
func (a *Autocomplete) filter(query string) []Candidate {
	lower := strings.ToLower(query)
	var out []Candidate
	for _, p := range a.directory.profiles {
		if query == "" ||
			strings.Contains(strings.ToLower(p.DisplayName), lower) ||
			strings.Contains(strings.ToLower(p.Email), lower) {
			out = append(out, Candidate{Kind: KindProfile, ID: p.ID, Name: p.DisplayName})
		}
	}
	for _, t := range a.directory.tags {
		if query == "" || strings.Contains(strings.ToLower(t.Name), lower) {
			out = append(out, Candidate{Kind: KindTag, ID: t.ID, Name: t.Name})
		}
	}
	return out
}

// mentionSpan finds the '@' governing the cursor: the nearest '@' to the
// left with no whitespace between it and the cursor. Returns the byte offset
// of the '@' and the typed query.
func mentionSpan(text string, cursor int) (int, string, bool) {
	i := cursor
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if unicode.IsSpace(r) {
			return 0, "", false
		}
		i -= size
		if r == '@' {
			return i, text[i+1 : cursor], true
		}
	}
	return 0, "", false
}
