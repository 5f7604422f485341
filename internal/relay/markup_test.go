package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"emphasis and code span", "**bold** and *it* `code`", "bold and it code"},
		{"unordered list", "- one\n- two", "• one\n• two"},
		{"ordered list", "1. first\n2. second", "1. first\n2. second"},
		{"fenced code", "```go\nfmt.Println(1)\n```", "fmt.Println(1)"},
		{"heading", "# Title\nbody", "Title\n\nbody"},
		{"link and image", "see [docs](http://x.test) and ![pic](http://y.test/a.png)", "see docs and [image]"},
		{"soft line break", "line one\nline two", "line one\nline two"},
		{"nested list", "- outer\n  - inner\n- next", "• outer\n  • inner\n• next"},
		{"backslash escapes", `1\. not a list and \*star\*`, "1. not a list and *star*"},
		{"escape inside code span", "`a\\*b`", `a\*b`},
		{"thematic break only", "---", ""},
		{"plain text", "nothing to do", "nothing to do"},
		{"blank", "  ", "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkup(tt.input))
		})
	}
}
