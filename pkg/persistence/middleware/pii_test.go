package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/persistence/middleware"
)

func TestRedactMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewRedactMiddleware([]string{
		`[\w.+-]+@[\w-]+\.[\w.]+`,
		`AIza[0-9A-Za-z_-]{10,}`,
	})(underlyingStore)

	ctx := context.Background()
	sessionID := "pii-session"
	sess := domain.NewSession(sessionID, "flow")
	sess.Append(domain.Exchange{
		RunID:  "r1",
		Input:  "mail jdoe@example.com the key AIzaSyA1234567890abc",
		Output: "done",
	})
	sess.Metadata["contact"] = "ops@example.org"

	if err := secureStore.Save(ctx, sessionID, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if sess.Exchanges[0].Input != "mail jdoe@example.com the key AIzaSyA1234567890abc" {
		t.Error("Middleware modified original session in memory!")
	}

	stored, err := underlyingStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if got := stored.Exchanges[0].Input; got != "mail *** the key ***" {
		t.Errorf("Input should be masked, got: %q", got)
	}
	if got := stored.Exchanges[0].Output; got != "done" {
		t.Errorf("Output shouldn't be masked, got: %q", got)
	}
	if got := stored.Metadata["contact"]; got != "***" {
		t.Errorf("Metadata should be masked, got: %q", got)
	}
}

func TestChain_OrdersOutermostFirst(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)
	store := middleware.Chain(underlyingStore,
		middleware.NewRedactMiddleware([]string{"secret"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	sess := domain.NewSession("s", "flow")
	sess.Append(domain.Exchange{Input: "a secret"})
	if err := store.Save(ctx, "s", sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Exchanges[0].Input != "a ***" {
		t.Errorf("Expected redaction before encryption, got %q", loaded.Exchanges[0].Input)
	}
}
