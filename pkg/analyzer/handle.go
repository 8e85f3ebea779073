package analyzer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrUnavailable is returned by a Handle whose analyzer could not be initialized.
var ErrUnavailable = errors.New("analyzer unavailable")

// Handle is the immutable capability callers hold once initialization has run.
type Handle struct {
	analyzer Analyzer
	err      error
}

// Ready wraps an initialized analyzer.
func Ready(a Analyzer) *Handle {
	if a == nil {
		return Unavailable(errors.New("nil analyzer"))
	}
	return &Handle{analyzer: a}
}

// Unavailable returns a handle that refuses every request with ErrUnavailable.
func Unavailable(cause error) *Handle {
	if cause == nil {
		return &Handle{err: ErrUnavailable}
	}
	return &Handle{err: errors.Errorf("%w: %s", ErrUnavailable, cause)}
}

func (h *Handle) Available() bool {
	return h != nil && h.analyzer != nil
}

// Err explains why the handle is unavailable.
func (h *Handle) Err() error {
	if h == nil {
		return ErrUnavailable
	}
	return h.err
}

// Analyze calls the wrapped analyzer. A panic inside the analyzer is returned as an error.
func (h *Handle) Analyze(ctx context.Context, req Request) (res *Result, err error) {
	if !h.Available() {
		return nil, h.Err()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("analyzer panicked: %v", r)
		}
	}()

	res, err = h.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &Result{}, nil
	}
	return res, nil
}

// Factory creates the analyzer. It runs at most once per Loader.
type Factory func(ctx context.Context) (Analyzer, error)

// Loader performs the one-time initialization and hands out the same Handle on every call.
type Loader struct {
	once    sync.Once
	factory Factory
	handle  *Handle
}

func NewLoader(factory Factory) *Loader {
	return &Loader{factory: factory}
}

func (l *Loader) Load(ctx context.Context) *Handle {
	l.once.Do(func() {
		if l.factory == nil {
			l.handle = Unavailable(errors.New("no analyzer configured"))
			return
		}

		a, err := l.factory(ctx)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("analyzer initialization failed, code blocks will render without annotations")
			l.handle = Unavailable(err)
			return
		}

		zerolog.Ctx(ctx).Debug().Msg("analyzer initialized")
		l.handle = Ready(a)
	})
	return l.handle
}
