package features

import (
	"context"
	"fmt"
	"sync"
)

// Assistant is a vision-language model that answers questions about a
// single frame. The pipeline uses it to describe video keyframes.
type Assistant interface {
	Name() string
	DescribeFrame(ctx context.Context, frame []byte, prompt string) (string, error)
}

// AssistantSource hands out an Assistant for the duration of one
// callback. The backing client is created on acquire and released when
// the callback returns, so the (potentially expensive) resource never
// outlives its use and two callers never share a handle.
type AssistantSource struct {
	open func(ctx context.Context) (Assistant, func() error, error)
	mu   sync.Mutex
}

// NewAssistantSource wraps a constructor returning an assistant and its
// release function.
func NewAssistantSource(open func(ctx context.Context) (Assistant, func() error, error)) *AssistantSource {
	return &AssistantSource{open: open}
}

// With acquires an assistant, runs fn, and releases it. Callers are
// serialized; the assistant must not escape fn.
func (s *AssistantSource) With(ctx context.Context, fn func(Assistant) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assistant, release, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire assistant: %w", err)
	}
	defer func() {
		_ = release()
	}()

	return fn(assistant)
}
