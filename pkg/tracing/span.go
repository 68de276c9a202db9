// Package tracing times the stages of a request as a tree of spans carried
// in the context. Ending the root span logs the whole tree at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/logger"
)

type spanKey struct{}

type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	root   bool
	logger *slog.Logger

	mu       sync.Mutex
	attrs    []any
	children []*Span
}

// Start opens a span named name. It becomes a child of the span already in
// ctx, or a root span keyed by the request ID otherwise.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	} else {
		s.root = true
		s.TraceID = logger.RequestID(ctx)
		s.logger = logger.FromContext(ctx)
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// Set attaches an attribute. It is a no-op on a nil span.
func (s *Span) Set(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End fixes the span's duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.mu.Unlock()
	if s.root {
		s.log(s.logger, 0)
	}
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i+1 < len(s.attrs); i += 2 {
		if s.attrs[i] == key {
			return s.attrs[i+1], true
		}
	}
	return nil, false
}

func (s *Span) log(l *slog.Logger, depth int) {
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.mu.Lock()
	args := append([]any{"span", s.Name, "depth", depth, "duration_us", s.Duration.Microseconds()}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()
	if s.TraceID != "" {
		args = append(args, "trace_id", s.TraceID)
	}
	l.Debug("span", args...)
	for _, c := range children {
		c.log(l, depth+1)
	}
}
