package mention

import (
	"testing"

	"huddle/client/internal/store"
)

func testDirectory() *Directory {
	return NewDirectory(
		[]store.Profile{
			{ID: "u1", DisplayName: "alice", Email: "a@x.com"},
			{ID: "u2", DisplayName: "bob", Email: "bob@x.com"},
		},
		[]store.Tag{
			{ID: "t1", Name: "backend"},
		},
	)
}

func TestHasMention(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "display name", content: "hello @alice", want: true},
		{name: "case insensitive", content: "hello @Alice", want: true},
		{name: "email", content: "ping @a@x.com please", want: true},
		{name: "tag membership", content: "attention @backend team", want: true},
		{name: "partial token never matches", content: "hello @alicexyz", want: false},
		{name: "prefix inside token never matches", content: "@backendxyz", want: false},
		{name: "no at sign", content: "hello alice", want: false},
		{name: "bare at is plain text", content: "meet @ noon, alice", want: false},
		{name: "mention mid sentence", content: "did @alice see this?", want: true},
		{name: "punctuation glued to token breaks it", content: "thanks @alice!", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HasMention(tc.content, "alice", "a@x.com", []string{"backend"})
			if got != tc.want {
				t.Fatalf("HasMention(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestHasMentionDoesNotMatchOthers(t *testing.T) {
	if HasMention("hello @bob", "alice", "a@x.com", nil) {
		t.Fatal("mention of bob must not match alice")
	}
}

func TestHighlight(t *testing.T) {
	d := testDirectory()

	got := Highlight("hello @alice and @stranger", d)
	want := `hello <mark class="mention">@alice</mark> and @stranger`
	if got != want {
		t.Fatalf("Highlight = %q, want %q", got, want)
	}
}

func TestHighlightTag(t *testing.T) {
	d := testDirectory()
	got := Highlight("cc @backend", d)
	want := `cc <mark class="mention">@backend</mark>`
	if got != want {
		t.Fatalf("Highlight = %q, want %q", got, want)
	}
}

func TestHighlightIdempotent(t *testing.T) {
	d := testDirectory()
	inputs := []string{
		"hello @alice",
		"@alice @bob @backend",
		"plain text without mentions",
		"edge @ case and @alice trailing",
	}
	for _, input := range inputs {
		once := Highlight(input, d)
		twice := Highlight(once, d)
		if once != twice {
			t.Fatalf("not idempotent for %q:\nonce:  %q\ntwice: %q", input, once, twice)
		}
	}
}

func TestHighlightLeavesOtherMarkupAlone(t *testing.T) {
	d := testDirectory()
	input := "<p>hi there</p> @alice <i>rest</i>"
	got := Highlight(input, d)
	want := `<p>hi there</p> <mark class="mention">@alice</mark> <i>rest</i>`
	if got != want {
		t.Fatalf("Highlight = %q, want %q", got, want)
	}
}

func TestTokens(t *testing.T) {
	got := tokens("a @one two @three @ @four")
	want := []string{"one", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
