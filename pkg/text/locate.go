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
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Strategy names the rule that located a span
type Strategy string

const (
	StrategyExact              Strategy = "exact"
	StrategyWhitespaceTolerant Strategy = "whitespace"
	StrategyFuzzyToken         Strategy = "fuzzy"
)

// Match describes where a located span is. Exact matches carry the literal
// substring, the tolerant strategies carry a compiled pattern.
type Match struct {
	Strategy Strategy
	Literal  string
	Pattern  *regexp.Regexp
}

// Options tunes the fuzzy token strategy
type Options struct {
	// MaxGap is the most characters allowed between two anchor tokens
	MaxGap int
	// MinTokenLength drops shorter tokens before anchoring
	MinTokenLength int
	// MinTokens is how many anchor tokens must survive filtering
	MinTokens int
}

// DefaultOptions returns the gap of 50 characters, tokens of at least 3
// characters and at least 3 anchors.
func DefaultOptions() Options {
	return Options{
		MaxGap:         50,
		MinTokenLength: 3,
		MinTokens:      3,
	}
}

// Locator finds the span of a document a fix refers to
type Locator struct {
	opts Options
}

// NewLocator creates a Locator. Non-positive token limits and a negative gap
// fall back to the defaults.
func NewLocator(opts Options) *Locator {
	def := DefaultOptions()
	if opts.MaxGap < 0 {
		opts.MaxGap = def.MaxGap
	}
	if opts.MinTokenLength <= 0 {
		opts.MinTokenLength = def.MinTokenLength
	}
	if opts.MinTokens <= 0 {
		opts.MinTokens = def.MinTokens
	}
	return &Locator{opts: opts}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Locate reports whether original can be found in doc and by which strategy.
// Strategies run strictest first and the first hit wins.
func (l *Locator) Locate(doc, original string) (Match, bool) {
	if strings.TrimSpace(original) == "" {
		return Match{}, false
	}

	if m, ok := matchExact(doc, original); ok {
		return m, true
	}
	if m, ok := matchWhitespace(doc, original); ok {
		return m, true
	}
	return matchFuzzy(doc, original, l.opts)
}

func matchExact(doc, original string) (Match, bool) {
	if !strings.Contains(doc, original) {
		return Match{}, false
	}
	return Match{Strategy: StrategyExact, Literal: original}, true
}

func matchWhitespace(doc, original string) (Match, bool) {
	escaped := regexp.QuoteMeta(strings.TrimSpace(original))
	re, err := regexp.Compile(whitespaceRun.ReplaceAllLiteralString(escaped, `\s+`))
	if err != nil || !re.MatchString(doc) {
		return Match{}, false
	}
	return Match{Strategy: StrategyWhitespaceTolerant, Pattern: re}, true
}

func matchFuzzy(doc, original string, opts Options) (Match, bool) {
	var anchors []string
	for _, tok := range strings.Fields(original) {
		if utf8.RuneCountInString(tok) >= opts.MinTokenLength {
			anchors = append(anchors, regexp.QuoteMeta(tok))
		}
	}
	if len(anchors) < opts.MinTokens {
		return Match{}, false
	}

	re, err := regexp.Compile("(?s)" + strings.Join(anchors, fmt.Sprintf(".{0,%d}?", opts.MaxGap)))
	if err != nil || !re.MatchString(doc) {
		return Match{}, false
	}
	return Match{Strategy: StrategyFuzzyToken, Pattern: re}, true
}
