// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package markdown

import (
	"strings"
	"testing"
)

func TestToHTML(t *testing.T) {
	tests := []struct {
		name, source, want string
	}{
		{"heading", "# Привет", `<h1 id=`},
		{"emphasis", "*важно*", "<em>важно</em>"},
		{"table", "| a | b |\n|---|---|\n| 1 | 2 |", "<table>"},
		{"strikethrough", "~~old~~", "<del>old</del>"},
		{"code block", "```go\nfunc main() {}\n```", "<pre"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToHTML(tt.source)
			if err != nil {
				t.Fatalf("ToHTML: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("ToHTML(%q) = %q, want it to contain %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestToHTMLDropsRawHTML(t *testing.T) {
	got, err := ToHTML("hello <script>alert(1)</script>\n\n<div onclick=\"x()\">block</div>")
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if strings.Contains(got, "<script>") || strings.Contains(got, "onclick") {
		t.Errorf("raw HTML leaked into output: %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name   string
		source string
		n      int
		want   string
	}{
		{"short text kept", "Один два три", 5, "Один два три"},
		{"cut with ellipsis", "one two three four", 2, "one two…"},
		{"markup stripped", "# Title\n\nSome **bold** and [link](http://x).", 10, "Title Some bold and link."},
		{"code skipped", "Intro\n\n```\nsecret code\n```\n\nOutro", 10, "Intro Outro"},
		{"soft breaks join words", "first\nsecond", 10, "first second"},
		{"zero keeps everything", "a b c", 0, "a b c"},
		{"empty", "", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.source, tt.n); got != tt.want {
				t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.source, tt.n, got, tt.want)
			}
		})
	}
}
