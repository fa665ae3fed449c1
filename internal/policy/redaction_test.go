package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactIdentity(t *testing.T) {
	cases := map[string]string{
		"5551999998888@s.whatsapp.net": "*********8888@s.whatsapp.net",
		"120363040000000000@g.us":      "120363040000000000@g.us",
		"1234@s.whatsapp.net":          "1234@s.whatsapp.net",
		"555199":                       "**5199",
		"":                             "",
	}
	for in, want := range cases {
		if got := RedactIdentity(in); got != want {
			t.Fatalf("RedactIdentity(%q) = %q, want %q", in, got, want)
		}
	}
}
