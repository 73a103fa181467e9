package assistant

import (
	"strings"
	"testing"
)

func TestExtractTag(t *testing.T) {
	tests := []struct {
		name string
		text string
		tag  string
		want string
	}{
		{
			name: "simple final",
			text: "<final>Provide Station 4 response times for 2023.</final>",
			tag:  "final",
			want: "Provide Station 4 response times for 2023.",
		},
		{
			name: "surrounding commentary ignored",
			text: "Sure! <final>The sentence.</final> Let me know if that works.",
			tag:  "final",
			want: "The sentence.",
		},
		{
			name: "multiline body",
			text: "<body>Line one\nLine two\nLine three</body>",
			tag:  "body",
			want: "Line one\nLine two\nLine three",
		},
		{
			name: "case insensitive tags",
			text: "<FINAL>Upper tags.</FINAL>",
			tag:  "final",
			want: "Upper tags.",
		},
		{
			name: "quotes stripped",
			text: `<subject>"Station 4 Response Times"</subject>`,
			tag:  "subject",
			want: "Station 4 Response Times",
		},
		{
			name: "missing tag",
			text: "no tags here",
			tag:  "final",
			want: "",
		},
		{
			name: "unknown tag name",
			text: "<final>x</final>",
			tag:  "nope",
			want: "",
		},
		{
			name: "first occurrence wins",
			text: "<final>first</final><final>second</final>",
			tag:  "final",
			want: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTag(tt.text, tt.tag); got != tt.want {
				t.Errorf("extractTag(%q, %q) = %q, want %q", tt.text, tt.tag, got, tt.want)
			}
		})
	}
}

func TestStripQuotes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"quoted"`, "quoted"},
		{`'single'`, "single"},
		{"  padded  ", "padded"},
		{`"mixed'`, `mixed`},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := stripQuotes(tt.in); got != tt.want {
			t.Errorf("stripQuotes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFinalizeInstruction(t *testing.T) {
	t.Run("no terms", func(t *testing.T) {
		got := finalizeInstruction(nil)
		if strings.Contains(got, "MUST include these exact terms") {
			t.Error("instruction should not demand terms when none were collected")
		}
	})

	t.Run("terms are sorted and joined", func(t *testing.T) {
		terms := map[string]struct{}{
			"station 7": {},
			"2024":      {},
			"csv":       {},
		}
		got := finalizeInstruction(terms)
		if !strings.Contains(got, "2024; csv; station 7") {
			t.Errorf("instruction missing sorted term list: %q", got)
		}
	})
}
