package features

import (
	"context"
	"errors"
	"testing"
)

type fakeAssistant struct {
	response string
}

func (f *fakeAssistant) Name() string { return "fake" }

func (f *fakeAssistant) DescribeFrame(ctx context.Context, frame []byte, prompt string) (string, error) {
	return f.response, nil
}

func TestAssistantSource_AcquireAndRelease(t *testing.T) {
	var opened, released int

	source := NewAssistantSource(func(ctx context.Context) (Assistant, func() error, error) {
		opened++
		return &fakeAssistant{response: "a beach"}, func() error {
			released++
			return nil
		}, nil
	})

	var got string
	err := source.With(context.Background(), func(a Assistant) error {
		desc, err := a.DescribeFrame(context.Background(), nil, "what is shown?")
		got = desc
		return err
	})
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}

	if got != "a beach" {
		t.Errorf("unexpected description %q", got)
	}
	if opened != 1 || released != 1 {
		t.Errorf("expected one open and one release, got %d/%d", opened, released)
	}
}

func TestAssistantSource_ReleasedOnCallbackError(t *testing.T) {
	var released bool

	source := NewAssistantSource(func(ctx context.Context) (Assistant, func() error, error) {
		return &fakeAssistant{}, func() error {
			released = true
			return nil
		}, nil
	})

	wantErr := errors.New("callback failed")
	err := source.With(context.Background(), func(a Assistant) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected callback error, got %v", err)
	}
	if !released {
		t.Error("expected assistant to be released after callback error")
	}
}

func TestAssistantSource_OpenError(t *testing.T) {
	source := NewAssistantSource(func(ctx context.Context) (Assistant, func() error, error) {
		return nil, nil, errors.New("no api key")
	})

	called := false
	err := source.With(context.Background(), func(a Assistant) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected error when open fails")
	}
	if called {
		t.Error("callback must not run when open fails")
	}
}
