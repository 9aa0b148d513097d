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

package text

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/docpatch/pkg/fix"
	"gitlab.com/tozd/go/errors"
)

// Apply replaces the first occurrence described by m with replacement.
// The replacement is inserted verbatim.
func Apply(doc string, m Match, replacement string) string {
	switch {
	case m.Pattern != nil:
		loc := m.Pattern.FindStringIndex(doc)
		if loc == nil {
			return doc
		}
		return doc[:loc[0]] + replacement + doc[loc[1]:]
	case m.Literal != "":
		return strings.Replace(doc, m.Literal, replacement, 1)
	default:
		return doc
	}
}

// Outcome is what happened to one fix during a patch run
type Outcome struct {
	FixID    string
	Category fix.Category
	Strategy Strategy
	Applied  bool
}

// Result contains the patched document and per-fix outcomes
type Result struct {
	// OriginalContent is the document before any fix
	OriginalContent string

	// ModifiedContent is the document after every located fix
	ModifiedContent string

	// Applied lists the fixes that were substituted, in application order
	Applied []fix.Applied

	// Outcomes has one entry per input fix, in input order
	Outcomes []Outcome
}

// WasModified reports whether any fix was applied
func (r *Result) WasModified() bool {
	return len(r.Applied) > 0
}

// Patcher applies fixes one after another to a working copy of a document
type Patcher struct {
	locator *Locator
}

// NewPatcher creates a Patcher that locates spans with locator
func NewPatcher(locator *Locator) *Patcher {
	if locator == nil {
		locator = NewLocator(DefaultOptions())
	}
	return &Patcher{locator: locator}
}

// Patch applies fixes in order. Each fix is located against the document as
// left by the fixes before it. Fixes that cannot be located are skipped.
func (p *Patcher) Patch(ctx context.Context, doc string, fixes []fix.Fix) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	result := &Result{
		OriginalContent: doc,
		ModifiedContent: doc,
		Outcomes:        make([]Outcome, 0, len(fixes)),
	}

	current := doc
	for _, f := range fixes {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("patching cancelled: %w", err)
		}

		outcome := Outcome{FixID: f.ID, Category: f.Category}

		m, ok := p.locator.Locate(current, f.OriginalContent)
		if !ok {
			logger.Warn().Str("fix_id", f.ID).Str("category", string(f.Category)).Msg("original content not found, skipping fix")
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		current = Apply(current, m, f.ProposedContent)
		outcome.Strategy = m.Strategy
		outcome.Applied = true
		result.Outcomes = append(result.Outcomes, outcome)
		result.Applied = append(result.Applied, fix.NewApplied(f, string(m.Strategy)))

		logger.Debug().Str("fix_id", f.ID).Str("strategy", string(m.Strategy)).Msg("applied fix")
	}

	result.ModifiedContent = current
	return result, nil
}
