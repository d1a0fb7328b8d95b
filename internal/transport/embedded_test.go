package transport

import (
	"errors"
	"testing"
	"time"
)

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("default timeout", func(t *testing.T) {
		t.Parallel()

		if e := NewEmbeddedTor(); e.startupTimeout != 3*time.Minute {
			t.Errorf("startupTimeout = %v, want 3m", e.startupTimeout)
		}
	})

	t.Run("WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		if e := NewEmbeddedTor(WithStartupTimeout(30 * time.Second)); e.startupTimeout != 30*time.Second {
			t.Errorf("startupTimeout = %v, want 30s", e.startupTimeout)
		}
	})
}

func TestEmbeddedTor_NotStarted(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor()
	if e.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if e.SocksAddr() != "" || e.ControlAddr() != "" {
		t.Error("addresses set before Start")
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop() on unstarted instance error = %v", err)
	}
	if _, err := e.NewClient(WithTimeout(time.Second)); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("NewClient() error = %v, want ErrTorNotRunning", err)
	}
}
