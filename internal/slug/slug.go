// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from arbitrary strings.
// Cyrillic and a handful of Latin letters without a decomposition are
// transliterated phonetically; accented Latin letters lose their marks.
package slug

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLength is the longest post or category slug the database stores.
	MaxLength = 255
	// MaxTagLength bounds both a tag's name, in characters, and its slug.
	MaxTagLength = 100
)

// separators matches every run of characters that cannot appear in a slug.
var separators = regexp.MustCompile(`[^a-z0-9]+`)

// translit maps lowercase letters that NFKD cannot reduce to ASCII.
var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	// Ukrainian and Belarusian
	'і': "i", 'ї': "yi", 'є': "ye", 'ґ': "g", 'ў': "u",
	// Latin letters without a canonical decomposition
	'ß': "ss", 'æ': "ae", 'œ': "oe", 'ø': "o", 'đ': "d", 'ð': "d",
	'ł': "l", 'þ': "th", 'ı': "i",
}

// Generate creates a URL-friendly slug from the given string.
// Example: "Название статьи 2" → "nazvanie-stati-2"
func Generate(s string) string {
	// Composed form first, so a decomposed "й" ("и" + breve) maps like "й".
	lower := norm.NFC.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if t, ok := translit[r]; ok {
			b.WriteString(t)
			continue
		}
		b.WriteRune(r)
	}

	// NFKD splits "é" into "e" + combining acute; dropping the marks leaves ASCII.
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(stripMarks, b.String())
	if err != nil {
		ascii = b.String()
	}

	result := separators.ReplaceAllString(strings.ToLower(ascii), "-")
	return strings.Trim(result, "-")
}

// Tag is a tag name paired with its derived slug.
type Tag struct {
	Name string
	Slug string
}

// CollisionError reports distinct tag names that derive the same slug.
type CollisionError struct {
	Slug  string
	Names []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("tags %s share the slug %q", strings.Join(quoteAll(e.Names), ", "), e.Slug)
}

// EmptyError reports a tag name that yields no slug at all, e.g. "!!!".
type EmptyError struct {
	Name string
}

func (e *EmptyError) Error() string {
	return fmt.Sprintf("tag %q has no usable characters", e.Name)
}

// TooLongError reports a tag whose name or derived slug exceeds
// MaxTagLength. Transliteration can make the slug longer than the name.
type TooLongError struct {
	Name string
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("tag %q is longer than %d characters", e.Name, MaxTagLength)
}

// Tags derives slugs for a set of tag names submitted together. Blank names
// are skipped and repeated spellings (ignoring case and extra whitespace)
// are merged. Two distinct names sharing a slug, as "Flask" and "Фласк" do,
// fail with *CollisionError and no tags are returned. Names or slugs over
// MaxTagLength fail with *TooLongError.
func Tags(names []string) ([]Tag, error) {
	var out []Tag
	bySlug := make(map[string]int)

	for _, raw := range names {
		name := norm.NFC.String(strings.Join(strings.Fields(raw), " "))
		if name == "" {
			continue
		}
		s := Generate(name)
		if s == "" {
			return nil, &EmptyError{Name: name}
		}
		if utf8.RuneCountInString(name) > MaxTagLength || len(s) > MaxTagLength {
			return nil, &TooLongError{Name: name}
		}
		if i, ok := bySlug[s]; ok {
			if strings.EqualFold(out[i].Name, name) {
				continue
			}
			return nil, &CollisionError{Slug: s, Names: []string{out[i].Name, name}}
		}
		bySlug[s] = len(out)
		out = append(out, Tag{Name: name, Slug: s})
	}
	return out, nil
}

// Split parses a comma separated tag field into names.
func Split(field string) []string {
	var names []string
	for _, part := range strings.Split(field, ",") {
		if p := strings.TrimSpace(part); p != "" {
			names = append(names, p)
		}
	}
	return names
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
