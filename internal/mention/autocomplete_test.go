package mention

import (
	"testing"

	"huddle/client/internal/store"
)

func testAutocomplete() *Autocomplete {
	return NewAutocomplete(NewDirectory(
		[]store.Profile{
			{ID: "u1", DisplayName: "alice", Email: "a@x.com"},
			{ID: "u2", DisplayName: "malika", Email: "m@x.com"},
		},
		[]store.Tag{
			{ID: "t1", Name: "frontend"},
			{ID: "t2", Name: "alerts"},
		},
	))
}

func TestOpensAfterAt(t *testing.T) {
	a := testAutocomplete()
	a.HandleInput("hey @al", 7)

	if !a.IsOpen() {
		t.Fatal("expected open candidate list")
	}
	names := make([]string, 0)
	for _, c := range a.Candidates() {
		names = append(names, c.Name)
	}
	// substring match, profiles ranked before tags
	want := []string{"alice", "malika", "alerts"}
	if len(names) != len(want) {
		t.Fatalf("candidates = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", names, want)
		}
	}
}

func TestClosedWithoutAtContext(t *testing.T) {
	a := testAutocomplete()

	a.HandleInput("plain text", 5)
	if a.IsOpen() {
		t.Fatal("must stay closed without @")
	}

	// Whitespace between @ and cursor breaks the span.
	a.HandleInput("hey @al ice", 11)
	if a.IsOpen() {
		t.Fatal("must close once whitespace follows the query")
	}
}

func TestCursorCyclesCircularly(t *testing.T) {
	a := testAutocomplete()
	a.HandleInput("@al", 3)
	n := len(a.Candidates())
	if n != 3 {
		t.Fatalf("expected 3 candidates, got %d", n)
	}

	for i := 1; i <= n; i++ {
		if _, handled := a.HandleKey(KeyDown); !handled {
			t.Fatal("Down not handled while open")
		}
		if want := i % n; a.ActiveIndex() != want {
			t.Fatalf("after %d downs ActiveIndex = %d, want %d", i, a.ActiveIndex(), want)
		}
	}

	if _, _ = a.HandleKey(KeyUp); a.ActiveIndex() != n-1 {
		t.Fatalf("Up from 0 should wrap to %d, got %d", n-1, a.ActiveIndex())
	}
}

func TestEnterCommitsSelection(t *testing.T) {
	a := testAutocomplete()
	a.HandleInput("hey @al", 7)

	edit, handled := a.HandleKey(KeyEnter)
	if !handled || edit == nil {
		t.Fatal("Enter must commit while open")
	}
	if edit.Text != "hey @alice " {
		t.Fatalf("Text = %q, want %q", edit.Text, "hey @alice ")
	}
	if edit.Cursor != len("hey @alice ") {
		t.Fatalf("Cursor = %d, want %d", edit.Cursor, len("hey @alice "))
	}
	if a.IsOpen() {
		t.Fatal("list must close after commit")
	}
}

func TestCommitPreservesTrailingText(t *testing.T) {
	a := testAutocomplete()
	text := "hey @al how are you"
	a.HandleInput(text, 7) // cursor right after "al"

	edit, _ := a.HandleKey(KeyEnter)
	if edit == nil {
		t.Fatal("expected commit edit")
	}
	want := "hey @alice  how are you"
	if edit.Text != want {
		t.Fatalf("Text = %q, want %q", edit.Text, want)
	}
	if edit.Cursor != len("hey @alice ") {
		t.Fatalf("Cursor = %d, want %d", edit.Cursor, len("hey @alice "))
	}
}

func TestEscapeClosesWithoutEditing(t *testing.T) {
	a := testAutocomplete()
	a.HandleInput("hey @al", 7)

	edit, handled := a.HandleKey(KeyEscape)
	if !handled || edit != nil {
		t.Fatal("Escape must close without an edit")
	}
	if a.IsOpen() {
		t.Fatal("list must be closed after Escape")
	}
}

func TestClickCommitsLikeEnter(t *testing.T) {
	a := testAutocomplete()
	a.HandleInput("cc @fro", 7)

	candidates := a.Candidates()
	if len(candidates) != 1 || candidates[0].Kind != KindTag {
		t.Fatalf("expected single tag candidate, got %v", candidates)
	}
	edit := a.InsertMention(candidates[0])
	if edit.Text != "cc @frontend " {
		t.Fatalf("Text = %q, want %q", edit.Text, "cc @frontend ")
	}
}

func TestKeysIgnoredWhenClosed(t *testing.T) {
	a := testAutocomplete()
	if _, handled := a.HandleKey(KeyDown); handled {
		t.Fatal("keys must pass through while closed")
	}
}
