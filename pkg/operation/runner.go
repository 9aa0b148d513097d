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

package operation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🎯 Task is one independent, individually fallible side effect
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Settled is the outcome of a task
type Settled struct {
	Name string
	Err  error
}

// 🏃 Runner executes side effects and waits for every one of them to settle.
// A failing task never cancels or skips the others.
type Runner struct {
	async bool
	limit int
}

// 🏗️ NewRunner creates a new runner. When async is set tasks run concurrently,
// at most limit at a time (limit <= 0 means no limit).
func NewRunner(async bool, limit int) *Runner {
	return &Runner{
		async: async,
		limit: limit,
	}
}

// 🏃 Run executes tasks and returns their outcomes in task order
func (r *Runner) Run(ctx context.Context, tasks ...Task) []Settled {
	settled := make([]Settled, len(tasks))
	for i, t := range tasks {
		settled[i].Name = t.Name
	}

	if !r.async {
		for i, t := range tasks {
			settled[i].Err = runTask(ctx, t)
		}
		return settled
	}

	// tasks report through settled, so the group itself never fails
	var g errgroup.Group
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, t := range tasks {
		g.Go(func() error {
			settled[i].Err = runTask(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	return settled
}

// runTask runs t and turns a panic into an error
func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("task %s panicked: %s", t.Name, fmt.Sprint(rec))
		}
	}()

	if err := ctx.Err(); err != nil {
		return errors.Errorf("task %s cancelled: %w", t.Name, err)
	}

	if err := t.Run(ctx); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("task", t.Name).Msg("task failed")
		return err
	}
	return nil
}
