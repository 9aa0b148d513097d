// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fix holds the proposed corrections that docpatch locates and applies.
package fix

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🏷️ Category is the kind of correction a fix makes
type Category string

const (
	CategoryCodeUpdate      Category = "CODE_UPDATE"
	CategoryLinkFix         Category = "LINK_FIX"
	CategoryContentAddition Category = "CONTENT_ADDITION"
	CategoryVersionUpdate   Category = "VERSION_UPDATE"
	CategoryFormattingFix   Category = "FORMATTING_FIX"
)

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryCodeUpdate, CategoryLinkFix, CategoryContentAddition, CategoryVersionUpdate, CategoryFormattingFix:
		return true
	default:
		return false
	}
}

// 🩹 Fix is a proposed correction: a span of text believed to exist in a
// document and the text that should replace it.
type Fix struct {
	ID              string   `json:"id"`
	Category        Category `json:"category"`
	OriginalContent string   `json:"originalContent"`
	ProposedContent string   `json:"proposedContent"`
	Rationale       string   `json:"rationale"`
	Confidence      float64  `json:"confidence"`
}

// 📋 List is the ordered set of fixes generated for one document
type List struct {
	Fixes       []Fix  `json:"fixes"`
	DocumentURL string `json:"documentUrl"`
}

// ✅ Applied records a fix that was located and substituted during a run
type Applied struct {
	ID        string   `json:"id"`
	Category  Category `json:"category"`
	Rationale string   `json:"rationale"`
	Strategy  string   `json:"strategy"`
}

// NewApplied builds the applied record for f located by strategy
func NewApplied(f Fix, strategy string) Applied {
	return Applied{
		ID:        f.ID,
		Category:  f.Category,
		Rationale: f.Rationale,
		Strategy:  strategy,
	}
}

// 📥 Decode reads and validates a fix list
func Decode(r io.Reader) (*List, error) {
	var list List
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, errors.Errorf("decoding fix list: %w", err)
	}
	if err := list.Validate(); err != nil {
		return nil, errors.Errorf("validating fix list: %w", err)
	}
	return &list, nil
}

// 🔍 Validate checks the list is usable by a patch run
func (l *List) Validate() error {
	if strings.TrimSpace(l.DocumentURL) == "" {
		return errors.Errorf("documentUrl is required")
	}

	seen := make(map[string]struct{}, len(l.Fixes))
	for i, f := range l.Fixes {
		if f.ID == "" {
			return errors.Errorf("fix %d: id is required", i)
		}
		if _, ok := seen[f.ID]; ok {
			return errors.Errorf("fix %d: duplicate id %q", i, f.ID)
		}
		seen[f.ID] = struct{}{}
		if !f.Category.Valid() {
			return errors.Errorf("fix %s: unknown category %q", f.ID, f.Category)
		}
	}
	return nil
}

// 🎯 Select returns the fixes whose ids appear in ids, keeping list order.
// The order of ids is irrelevant; unknown ids are ignored.
func (l *List) Select(ids []string) []Fix {
	if len(ids) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	selected := make([]Fix, 0, len(ids))
	for _, f := range l.Fixes {
		if _, ok := wanted[f.ID]; ok {
			selected = append(selected, f)
		}
	}
	return selected
}

// 📄 FilenameFromURL returns the path segment after the final slash of a
// document url. Query strings and fragments are not part of the name.
func FilenameFromURL(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	if u, err := url.Parse(p); err == nil && (u.Scheme != "" || u.Host != "") {
		p = u.Path
	} else {
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
	}

	name := p[strings.LastIndex(p, "/")+1:]
	if name == "" || name == "." || name == ".." {
		return "", errors.Errorf("no filename in url %q", raw)
	}
	return name, nil
}
