package operation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📨 Response is the transport independent outcome of a session. A failed
// session serialises to {"error": "..."} only.
type Response struct {
	Success           bool     `json:"success,omitempty"`
	Message           string   `json:"message,omitempty"`
	Filename          string   `json:"filename,omitempty"`
	InvalidationID    string   `json:"invalidationId,omitempty"`
	InvalidationError string   `json:"invalidationError,omitempty"`
	FixesApplied      int      `json:"fixesApplied,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
	Error             string   `json:"error,omitempty"`

	// Err is the failure behind Error, for transports that classify it
	Err error `json:"-"`
}

// NewResponse converts a session result into a Response
func NewResponse(res *Result) Response {
	resp := Response{
		Success:        true,
		Message:        res.Message(),
		Filename:       res.Filename,
		InvalidationID: res.InvalidationID,
		FixesApplied:   res.FixesApplied,
		Warnings:       res.Warnings,
	}
	if res.InvalidationError != nil {
		resp.InvalidationError = res.InvalidationError.Error()
	}
	return resp
}

// ErrorResponse converts a failure into a Response
func ErrorResponse(err error) Response {
	return Response{Error: err.Error(), Err: err}
}

// Outcome is the transport shape of one fix's result
type Outcome struct {
	FixID    string `json:"fixId"`
	Category string `json:"category"`
	Strategy string `json:"strategy,omitempty"`
	Applied  bool   `json:"applied"`
}

// 🔍 Preview is the transport shape of a Plan. Document bodies are left out;
// Diff carries the change.
type Preview struct {
	SessionID    string    `json:"sessionId"`
	Filename     string    `json:"filename"`
	FixesApplied int       `json:"fixesApplied"`
	Diff         string    `json:"diff"`
	Outcomes     []Outcome `json:"outcomes"`
}

// NewPreview converts a plan into a Preview
func NewPreview(plan *Plan) Preview {
	outcomes := make([]Outcome, 0, len(plan.Outcomes))
	for _, o := range plan.Outcomes {
		outcomes = append(outcomes, Outcome{
			FixID:    o.FixID,
			Category: string(o.Category),
			Strategy: string(o.Strategy),
			Applied:  o.Applied,
		})
	}
	return Preview{
		SessionID:    plan.SessionID,
		Filename:     plan.Filename,
		FixesApplied: len(plan.Applied),
		Diff:         plan.Diff(),
		Outcomes:     outcomes,
	}
}

// 🛡️ Handle runs Apply and never lets an error or panic escape
func (o *operator) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			err := errors.Errorf("internal error: %s", fmt.Sprint(rec))
			zerolog.Ctx(ctx).Error().Err(err).Str("session_id", req.SessionID).Msg("patch session panicked")
			resp = ErrorResponse(err)
		}
	}()

	res, err := o.Apply(ctx, req)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", req.SessionID).Msg("patch session failed")
		return ErrorResponse(err)
	}
	return NewResponse(res)
}
