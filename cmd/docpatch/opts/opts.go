package opts

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/docpatch/pkg/cdn"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/operation"
	"github.com/walteh/docpatch/pkg/store"
	"gitlab.com/tozd/go/errors"

	// store backends register themselves
	_ "github.com/walteh/docpatch/pkg/store/fs"
	_ "github.com/walteh/docpatch/pkg/store/github"
	_ "github.com/walteh/docpatch/pkg/store/memory"
	_ "github.com/walteh/docpatch/pkg/store/sqlite"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config *config.Config
}

// Session is an operator bound to opened backends
type Session struct {
	Operator    operation.Operator
	Store       store.Store
	Invalidator cdn.Invalidator
}

// Close releases the store and invalidator
func (s *Session) Close(ctx context.Context) {
	cdn.Close(s.Invalidator)
	if err := store.Close(s.Store); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("closing store")
	}
}

// OpenSession opens the configured store and invalidator and builds an operator on them
func (o *RootOpts) OpenSession(ctx context.Context) (*Session, error) {
	if o.Config == nil {
		return nil, errors.Errorf("config is required")
	}

	st, err := store.Open(ctx, o.Config.Store)
	if err != nil {
		return nil, err
	}

	inv, err := cdn.New(ctx, o.Config.CDN)
	if err != nil {
		_ = store.Close(st)
		return nil, errors.Errorf("creating invalidator: %w", err)
	}

	op, err := operation.New(operation.Options{
		Config:      o.Config,
		Store:       st,
		Invalidator: inv,
	})
	if err != nil {
		cdn.Close(inv)
		_ = store.Close(st)
		return nil, errors.Errorf("creating operator: %w", err)
	}

	return &Session{Operator: op, Store: st, Invalidator: inv}, nil
}
