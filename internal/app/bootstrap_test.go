package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"rag-faq/pkg/config"
	pkgerrors "rag-faq/pkg/errors"
	"rag-faq/pkg/secrets"
)

func TestInitStatus_Lifecycle(t *testing.T) {
	s := NewInitStatus()
	if s.State() != InitNotStarted {
		t.Fatalf("initial state = %s", s.State())
	}
	s.MarkInitializing()
	if s.State() != InitInitializing || s.Ready() {
		t.Fatalf("after MarkInitializing: state=%s ready=%v", s.State(), s.Ready())
	}
	s.MarkReady()
	if !s.Ready() || s.Err() != "" {
		t.Fatalf("after MarkReady: ready=%v err=%q", s.Ready(), s.Err())
	}
	s.MarkFailed(errors.New("model init error"))
	if s.State() != InitFailed || s.Err() != "model init error" {
		t.Fatalf("after MarkFailed: state=%s err=%q", s.State(), s.Err())
	}
}

func TestInitStatus_Check(t *testing.T) {
	s := NewInitStatus()
	if err := s.Check(); !errors.Is(err, pkgerrors.ErrNotReady) {
		t.Fatalf("Check before ready: %v", err)
	}
	s.MarkReady()
	if err := s.Check(); err != nil {
		t.Fatalf("Check when ready: %v", err)
	}
	s.MarkFailed(errors.New("boom"))
	if err := s.Check(); !errors.Is(err, pkgerrors.ErrNotReady) {
		t.Fatalf("Check after failure: %v", err)
	}
}

func TestNewBootstrap_DefaultsSafe(t *testing.T) {
	b, err := NewBootstrap(&config.Config{})
	if err != nil {
		t.Fatalf("NewBootstrap: %v", err)
	}
	if b.Logger == nil || b.Status == nil {
		t.Fatal("logger and status must be set")
	}
	if b.Status.State() != InitNotStarted {
		t.Fatalf("status = %s", b.Status.State())
	}
}

func TestResolveSecret_PrefersConfigured(t *testing.T) {
	b := &Bootstrap{Secrets: secrets.NewMemoryStore()}
	_ = b.Secrets.Set(context.Background(), "model_api_key", "from-store")

	v, err := b.resolveSecret(context.Background(), "from-config", "model_api_key")
	if err != nil || v != "from-config" {
		t.Fatalf("got %q, %v", v, err)
	}
	v, err = b.resolveSecret(context.Background(), "", "model_api_key")
	if err != nil || v != "from-store" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestParseDuration(t *testing.T) {
	if d := parseDuration("45s", time.Second); d != 45*time.Second {
		t.Fatalf("got %v", d)
	}
	if d := parseDuration("", time.Second); d != time.Second {
		t.Fatalf("got %v", d)
	}
	if d := parseDuration("bogus", 2*time.Second); d != 2*time.Second {
		t.Fatalf("got %v", d)
	}
}
