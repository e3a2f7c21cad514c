// Package explain asks a language model to explain difficult passages.
//
// Providers are slow external collaborators. Callers bound them with
// WithTimeout and treat every failure as non-fatal.
package explain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/japaniel/novelreader/pkg/difficulty"
)

var (
	ErrProviderUnavailable = errors.New("explain: provider unavailable")
	ErrProviderTimeout     = errors.New("explain: provider timed out")
)

// Request is one passage to explain.
type Request struct {
	Text  string
	Score difficulty.Score
	// Detailed selects the long-form analysis; otherwise a short summary is
	// requested.
	Detailed bool
}

// Provider turns a passage into an explanation.
type Provider interface {
	Explain(ctx context.Context, req Request) (string, error)
}

// ProviderError reports a failed explanation. It matches Kind with
// errors.Is, which is ErrProviderUnavailable or ErrProviderTimeout.
type ProviderError struct {
	Provider string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// wrapError classifies err as a timeout or an unavailable provider.
func wrapError(provider string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	kind := ErrProviderUnavailable
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = ErrProviderTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Explain(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Static is a deterministic provider for tests and offline runs. With an
// empty Response it summarizes the score diagnostics.
type Static struct {
	Response string
	Err      error
}

func (s Static) Explain(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrapError("static", err)
	}
	if s.Err != nil {
		return "", wrapError("static", s.Err)
	}
	if s.Response != "" {
		return s.Response, nil
	}
	return summary(req.Score), nil
}

type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout bounds every call to p by d. A call that outlives d returns
// ErrProviderTimeout even if p ignores its context.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{inner: p, timeout: d}
}

type result struct {
	text string
	err  error
}

func (t *timeoutProvider) Explain(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		text, err := t.inner.Explain(ctx, req)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", wrapError(nameOf(t.inner), r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		return "", wrapError(nameOf(t.inner), ctx.Err())
	}
}

func nameOf(p Provider) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}
