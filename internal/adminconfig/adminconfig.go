// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package adminconfig describes how the admin area lists each entity:
// which columns it shows, which columns it can be filtered and searched
// by, and which form fields are filled in from others. The description is
// an embedded YAML document.
package adminconfig

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed admin.yaml
var embedded []byte

// columns lists every column key an entity can show, with its heading.
var columns = map[string]map[string]string{
	"posts": {
		"title": "Заголовок", "slug": "URL", "author": "Автор", "category": "Категория",
		"status": "Статус", "tags": "Теги", "body": "Текст", "created": "Создан", "updated": "Обновлён",
	},
	"categories": {
		"id": "ID", "title": "Название", "slug": "URL", "posts": "Постов",
	},
	"tags": {
		"name": "Название", "slug": "URL", "posts": "Постов",
	},
	"users": {
		"username": "Логин", "email": "E-mail", "full_name": "Имя", "verified": "E-mail подтверждён",
		"role": "Роль", "last_login": "Последний вход", "created": "Зарегистрирован",
	},
	"comments": {
		"author": "Автор", "post": "Пост", "body": "Текст", "created": "Создан",
	},
}

// Entity is the listing configuration of one admin section.
type Entity struct {
	Name         string            `yaml:"name"`
	Title        string            `yaml:"title"`
	ListDisplay  []string          `yaml:"list_display"`
	ListFilter   []string          `yaml:"list_filter"`
	SearchFields []string          `yaml:"search_fields"`
	Prepopulated map[string]string `yaml:"prepopulated"`
}

// Config is the decoded admin.yaml.
type Config struct {
	Entities []Entity `yaml:"entities"`
}

// Load decodes the embedded configuration.
func Load() (*Config, error) {
	return Parse(embedded)
}

// Parse decodes and checks a configuration document. Unknown entities and
// column keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse admin config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) check() error {
	seen := make(map[string]bool)
	for _, e := range c.Entities {
		known, ok := columns[e.Name]
		if !ok {
			return fmt.Errorf("admin config: unknown entity %q", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("admin config: entity %q listed twice", e.Name)
		}
		seen[e.Name] = true
		if len(e.ListDisplay) == 0 {
			return fmt.Errorf("admin config: %s: list_display is empty", e.Name)
		}
		lists := map[string][]string{
			"list_display":  e.ListDisplay,
			"list_filter":   e.ListFilter,
			"search_fields": e.SearchFields,
		}
		for field, keys := range lists {
			for _, k := range keys {
				if _, ok := known[k]; !ok {
					return fmt.Errorf("admin config: %s.%s: unknown column %q", e.Name, field, k)
				}
			}
		}
		for target, source := range e.Prepopulated {
			if _, ok := known[source]; !ok {
				return fmt.Errorf("admin config: %s.prepopulated.%s: unknown column %q", e.Name, target, source)
			}
		}
	}
	return nil
}

// Entity returns the configuration for name.
func (c *Config) Entity(name string) (*Entity, bool) {
	for i := range c.Entities {
		if c.Entities[i].Name == name {
			return &c.Entities[i], true
		}
	}
	return nil, false
}

// Column is a list heading.
type Column struct {
	Key   string
	Label string
}

// Columns returns the headings of the list view in display order.
func (e *Entity) Columns() []Column {
	out := make([]Column, 0, len(e.ListDisplay))
	for _, k := range e.ListDisplay {
		out = append(out, Column{Key: k, Label: columns[e.Name][k]})
	}
	return out
}

// Label returns the heading of a column key.
func (e *Entity) Label(key string) string {
	return columns[e.Name][key]
}

// Row is one listed object: its identifier and the display value of each
// column it knows.
type Row struct {
	ID     string
	Values map[string]string
}

// Cells returns r's values in list_display order.
func (e *Entity) Cells(r Row) []string {
	out := make([]string, 0, len(e.ListDisplay))
	for _, k := range e.ListDisplay {
		out = append(out, r.Values[k])
	}
	return out
}

// Apply narrows rows by the request query: ?q= matches any search field
// case-insensitively and each list_filter key must equal its value.
func (e *Entity) Apply(rows []Row, query url.Values) []Row {
	q := strings.ToLower(strings.TrimSpace(query.Get("q")))
	var out []Row
	for _, r := range rows {
		if q != "" && !e.matches(r, q) {
			continue
		}
		if !e.passesFilters(r, query) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Entity) matches(r Row, q string) bool {
	for _, f := range e.SearchFields {
		if strings.Contains(strings.ToLower(r.Values[f]), q) {
			return true
		}
	}
	return false
}

func (e *Entity) passesFilters(r Row, query url.Values) bool {
	for _, f := range e.ListFilter {
		if want := query.Get(f); want != "" && r.Values[f] != want {
			return false
		}
	}
	return true
}

// Filter is one list_filter with the distinct values found in the rows.
type Filter struct {
	Key      string
	Label    string
	Choices  []string
	Selected string
}

// Filters returns the list_filter sidebar for rows, with the values
// currently selected in query.
func (e *Entity) Filters(rows []Row, query url.Values) []Filter {
	out := make([]Filter, 0, len(e.ListFilter))
	for _, k := range e.ListFilter {
		var choices []string
		for _, r := range rows {
			if v := r.Values[k]; v != "" && !slices.Contains(choices, v) {
				choices = append(choices, v)
			}
		}
		sort.Strings(choices)
		out = append(out, Filter{Key: k, Label: e.Label(k), Choices: choices, Selected: query.Get(k)})
	}
	return out
}

// Prepopulate returns the form field that fills target, if any.
func (e *Entity) Prepopulate(target string) string {
	return e.Prepopulated[target]
}
