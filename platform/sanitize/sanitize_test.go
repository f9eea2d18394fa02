package sanitize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTag(t *testing.T) {
	cases := map[string]string{
		"Roofing":           "roofing",
		"  HVAC  ":          "hvac",
		"Roofing / Gutters": "roofing_gutters",
		"new-construction":  "new_construction",
		"<b>Plumbing</b>":   "plumbing",
		"":                  "",
	}
	for in, want := range cases {
		if got := Tag(in); got != want {
			t.Fatalf("Tag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTagsDropsDuplicates(t *testing.T) {
	got := Tags([]string{"Roofing", "roofing", "", "Solar "})
	if diff := cmp.Diff([]string{"roofing", "solar"}, got); diff != "" {
		t.Fatalf("unexpected tags (-want +got):\n%s", diff)
	}
}

func TestText(t *testing.T) {
	if got := Text("  two   <i>words</i> "); got != "two words" {
		t.Fatalf("expected collapsed text, got %q", got)
	}
	if got := Code(" 77002 "); got != "77002" {
		t.Fatalf("expected trimmed code, got %q", got)
	}
}
