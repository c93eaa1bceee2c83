package dispatch

import (
	"bytes"
	"context"
	"encoding/json"

	apperrors "github.com/crabnebula-dev/gitbutler/internal/platform/errors"
)

// HandlerFunc is an untyped command handler. params is the raw JSON from the
// request and may be empty.
type HandlerFunc[C any] func(ctx context.Context, app C, params json.RawMessage) (any, error)

// Validator is implemented by params types with constraints beyond decoding.
type Validator interface {
	Validate() error
}

// Typed adapts a handler with a concrete params type. Params are decoded and
// validated before fn runs; on failure fn is never called.
func Typed[C, P, R any](fn func(ctx context.Context, app C, params P) (R, error)) HandlerFunc[C] {
	return func(ctx context.Context, app C, raw json.RawMessage) (any, error) {
		params, err := DecodeParams[P](raw)
		if err != nil {
			return nil, err
		}
		result, err := fn(ctx, app, params)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// NoParams adapts a handler that takes no params.
func NoParams[C, R any](fn func(ctx context.Context, app C) (R, error)) HandlerFunc[C] {
	return Typed(func(ctx context.Context, app C, _ struct{}) (R, error) {
		return fn(ctx, app)
	})
}

// DecodeParams decodes raw into P. Missing or null params decode as {}.
func DecodeParams[P any](raw json.RawMessage) (P, error) {
	var params P

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	if err := json.Unmarshal(trimmed, &params); err != nil {
		return params, apperrors.MalformedParams(err)
	}
	if v, ok := any(&params).(Validator); ok {
		if err := v.Validate(); err != nil {
			return params, apperrors.MalformedParams(err)
		}
	}
	return params, nil
}
