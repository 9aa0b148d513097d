// Package operation runs patch sessions: it loads a session's fix list and
// document, applies the selected fixes, records a changelog entry and
// triggers the downstream side effects.
package operation

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/walteh/docpatch/pkg/cdn"
	"github.com/walteh/docpatch/pkg/changelog"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/fix"
	"github.com/walteh/docpatch/pkg/log"
	"github.com/walteh/docpatch/pkg/render"
	"github.com/walteh/docpatch/pkg/store"
	"github.com/walteh/docpatch/pkg/text"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrInvalidInput marks requests that can never succeed as sent
	ErrInvalidInput = errors.Base("invalid input")

	// ErrNotFound marks a missing fix list or document
	ErrNotFound = errors.Base("not found")

	// ErrPersist marks a failed write of the patched document
	ErrPersist = errors.Base("persisting document failed")
)

// 🎯 Operator defines the patch session operations
type Operator interface {
	// Plan runs the read-only part of a session and returns the patched document
	Plan(ctx context.Context, req Request) (*Plan, error)
	// Apply runs a full session, persisting the result and triggering side effects
	Apply(ctx context.Context, req Request) (*Result, error)
	// Handle runs Apply and converts every failure into a Response
	Handle(ctx context.Context, req Request) Response
}

// 🔧 Options contains configuration for the operator
type Options struct {
	// Config is the docpatch configuration
	Config *config.Config
	// Store holds fix lists, documents and cached analysis artifacts
	Store store.Store
	// Invalidator purges content delivery caches
	Invalidator cdn.Invalidator
	// Now returns the changelog date, defaults to time.Now
	Now func() time.Time
}

// 🏭 New creates a new operator with the given options
func New(opts Options) (Operator, error) {
	if opts.Config == nil {
		return nil, errors.Errorf("config is required")
	}
	if opts.Store == nil {
		return nil, errors.Errorf("store is required")
	}
	if opts.Invalidator == nil {
		return nil, errors.Errorf("invalidator is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	locator := text.NewLocator(text.Options{
		MaxGap:         opts.Config.Locator.MaxGap,
		MinTokenLength: opts.Config.Locator.MinTokenLength,
		MinTokens:      opts.Config.Locator.MinTokens,
	})

	return &operator{
		config:      opts.Config,
		store:       opts.Store,
		invalidator: opts.Invalidator,
		now:         opts.Now,
		patcher:     text.NewPatcher(locator),
		runner:      NewRunner(true, 2),
	}, nil
}

// 🎮 operator implements the Operator interface
type operator struct {
	config      *config.Config
	store       store.Store
	invalidator cdn.Invalidator
	now         func() time.Time
	patcher     *text.Patcher
	runner      *Runner
}

// Request selects the fixes of a session to apply
type Request struct {
	SessionID string   `json:"sessionId"`
	FixIDs    []string `json:"fixIds"`

	// DryRun labels console output as a preview
	DryRun bool `json:"-"`
}

// 📋 Plan is a patched document that has not been persisted
type Plan struct {
	SessionID string
	Filename  string
	Key       string

	// Original is the document as loaded; Checksum is its store checksum
	Original string
	Checksum string

	// Patched is the document after the fixes and the changelog entry
	Patched string

	Outcomes []text.Outcome
	Applied  []fix.Applied
}

// Diff returns the change as diff-match-patch patch text
func (p *Plan) Diff() string {
	dmp := diffmatchpatch.New()
	return dmp.PatchToText(dmp.PatchMake(p.Original, p.Patched))
}

// PrettyDiff returns the change with ANSI colored insertions and deletions
func (p *Plan) PrettyDiff() string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(p.Original, p.Patched, false)
	return dmp.DiffPrettyText(dmp.DiffCleanupSemantic(diffs))
}

// ✅ Result summarises a completed session
type Result struct {
	Filename     string
	FixesApplied int
	Outcomes     []text.Outcome

	// Persisted is false when no fix applied and nothing was written
	Persisted bool

	InvalidationID    string
	InvalidationError error

	// Warnings lists best-effort side effects that failed
	Warnings []string
}

// Message returns a one line summary
func (r *Result) Message() string {
	if r.FixesApplied == 0 {
		return fmt.Sprintf("No fixes applied to %s", r.Filename)
	}
	noun := "fixes"
	if r.FixesApplied == 1 {
		noun = "fix"
	}
	return fmt.Sprintf("Applied %d %s to %s", r.FixesApplied, noun, r.Filename)
}

func validateSessionID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return errors.Errorf("%w: session id is required", ErrInvalidInput)
	case strings.ContainsAny(id, "/\\") || id == "." || id == "..":
		return errors.Errorf("%w: invalid session id %q", ErrInvalidInput, id)
	}
	return nil
}

// 🔍 Plan loads the fix list and document and applies the selected fixes in memory
func (o *operator) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := validateSessionID(req.SessionID); err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("session_id", req.SessionID).Logger()
	ctx = logger.WithContext(ctx)

	// Resolve the fix list
	list, err := o.loadFixList(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	// Derive the document key
	filename, err := fix.FilenameFromURL(list.DocumentURL)
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if !o.config.IsAllowedDocument(filename) {
		return nil, errors.Errorf("%w: unsupported document %q", ErrInvalidInput, filename)
	}
	key := o.config.DocumentKey(filename)

	// Load the document
	doc, err := o.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.Errorf("%w: document %s", ErrNotFound, key)
		}
		return nil, errors.Errorf("loading document: %w", err)
	}

	selected := list.Select(req.FixIDs)

	console := log.FromContext(ctx)
	console.StartSession(ctx, log.SessionOperation{
		SessionID: req.SessionID,
		Filename:  filename,
		Selected:  len(selected),
		DryRun:    req.DryRun,
	})
	defer console.EndSession(ctx)

	result, err := o.patcher.Patch(ctx, string(doc.Content), selected)
	if err != nil {
		return nil, err
	}

	for _, out := range result.Outcomes {
		console.LogFixOperation(ctx, log.FixOperation{
			ID:       out.FixID,
			Category: string(out.Category),
			Strategy: string(out.Strategy),
			Applied:  out.Applied,
		})
	}

	patched := changelog.Compose(result.ModifiedContent, result.Applied, o.now())

	logger.Debug().
		Str("filename", filename).
		Int("selected", len(selected)).
		Int("applied", len(result.Applied)).
		Msg("planned patch")

	return &Plan{
		SessionID: req.SessionID,
		Filename:  filename,
		Key:       key,
		Original:  string(doc.Content),
		Checksum:  doc.Checksum,
		Patched:   patched,
		Outcomes:  result.Outcomes,
		Applied:   result.Applied,
	}, nil
}

func (o *operator) loadFixList(ctx context.Context, session string) (*fix.List, error) {
	key := o.config.FixListKey(session)

	obj, err := o.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.Errorf("%w: fix list for session %s", ErrNotFound, session)
		}
		return nil, errors.Errorf("loading fix list: %w", err)
	}

	list, err := fix.Decode(bytes.NewReader(obj.Content))
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return list, nil
}

// 🚀 Apply runs a full session
func (o *operator) Apply(ctx context.Context, req Request) (*Result, error) {
	plan, err := o.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("session_id", req.SessionID).Str("filename", plan.Filename).Logger()
	ctx = logger.WithContext(ctx)

	res := &Result{
		Filename:     plan.Filename,
		FixesApplied: len(plan.Applied),
		Outcomes:     plan.Outcomes,
	}

	// Nothing to persist, but the session's cached analysis is still cleared
	if len(plan.Applied) == 0 {
		logger.Info().Msg("no fixes applied, nothing to persist")
		if err := o.invalidateAnalysis(ctx, req.SessionID); err != nil {
			logger.Warn().Err(err).Msg("analysis cache invalidation failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("invalidating analysis cache: %s", err))
		}
		return res, nil
	}

	// Persist the primary document; nothing downstream runs if this fails
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("session cancelled before write: %w", err)
	}
	putOpts := store.PutOptions{ContentType: store.ContentTypeMarkdown}
	if o.config.UseConditionalWrites() {
		putOpts.IfMatch = plan.Checksum
	}
	if err := o.store.Put(ctx, plan.Key, []byte(plan.Patched), putOpts); err != nil {
		return nil, &persistError{key: plan.Key, err: err}
	}
	res.Persisted = true

	// Rendered form, best-effort
	htmlKey := o.config.DocumentKey(render.Filename(plan.Filename))
	if err := o.writeRendered(ctx, htmlKey, plan); err != nil {
		logger.Warn().Err(err).Str("key", htmlKey).Msg("rendering document failed")
		res.Warnings = append(res.Warnings, fmt.Sprintf("rendering %s: %s", htmlKey, err))
	}

	// Analysis cache and CDN invalidation settle independently
	paths := []string{"/" + plan.Key, o.config.CDN.ChangelogPath, "/" + htmlKey}
	var invalidationID string
	settled := o.runner.Run(ctx,
		Task{Name: "analysis-cache", Run: func(ctx context.Context) error {
			return o.invalidateAnalysis(ctx, req.SessionID)
		}},
		Task{Name: "cdn", Run: func(ctx context.Context) error {
			id, err := o.invalidator.Invalidate(ctx, paths)
			invalidationID = id
			return err
		}},
	)

	for _, s := range settled {
		if s.Err == nil {
			continue
		}
		switch s.Name {
		case "cdn":
			logger.Error().Err(s.Err).Strs("paths", paths).Msg("cdn invalidation failed")
			res.InvalidationError = s.Err
		default:
			logger.Warn().Err(s.Err).Msg("analysis cache invalidation failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("invalidating analysis cache: %s", s.Err))
		}
	}
	if res.InvalidationError == nil {
		res.InvalidationID = invalidationID
	}

	logger.Info().
		Int("fixes_applied", res.FixesApplied).
		Str("invalidation_id", res.InvalidationID).
		Int("warnings", len(res.Warnings)).
		Msg("patch session complete")

	return res, nil
}

func (o *operator) writeRendered(ctx context.Context, key string, plan *Plan) error {
	page, err := render.HTML([]byte(plan.Patched), plan.Filename)
	if err != nil {
		return err
	}
	return o.store.Put(ctx, key, page, store.PutOptions{ContentType: render.ContentType})
}

// invalidateAnalysis deletes every cached analysis artifact of the session;
// already missing artifacts are not an error
func (o *operator) invalidateAnalysis(ctx context.Context, session string) error {
	var failed []string
	for _, key := range o.config.AnalysisKeys(session) {
		if err := o.store.Delete(ctx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
			zerolog.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("deleting analysis artifact failed")
			failed = append(failed, key)
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("deleting %s", strings.Join(failed, ", "))
	}
	return nil
}

// persistError reports a failed primary write; it matches both ErrPersist
// and the store error
type persistError struct {
	key string
	err error
}

func (e *persistError) Error() string {
	return fmt.Sprintf("persisting %s: %s", e.key, e.err)
}

func (e *persistError) Unwrap() []error {
	return []error{ErrPersist, e.err}
}
