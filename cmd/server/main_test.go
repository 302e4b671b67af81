package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"veritas-media/internal/auth"
	"veritas-media/internal/redisclient"
	"veritas-media/internal/testsupport/redisstub"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveStorageDriverDefaultsToJSON(t *testing.T) {
	if driver := resolveStorageDriver("", "", ""); driver != "json" {
		t.Fatalf("expected json driver, got %q", driver)
	}
}

func TestResolveStorageDriverPrefersPostgresWithDSN(t *testing.T) {
	if driver := resolveStorageDriver("", "", "postgres://example"); driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", driver)
	}
}

func TestResolveStorageDriverExplicitWins(t *testing.T) {
	if driver := resolveStorageDriver("json", "", "postgres://example"); driver != "json" {
		t.Fatalf("expected explicit json driver, got %q", driver)
	}
}

func TestResolvePostgresDSNPriority(t *testing.T) {
	t.Setenv("VERITAS_POSTGRES_DSN", "postgres://env")
	t.Setenv("DATABASE_URL", "postgres://database")
	if got := resolvePostgresDSN("postgres://flag"); got != "postgres://flag" {
		t.Fatalf("expected flag DSN to win, got %q", got)
	}
	if got := resolvePostgresDSN(""); got != "postgres://env" {
		t.Fatalf("expected VERITAS_POSTGRES_DSN to win, got %q", got)
	}
	t.Setenv("VERITAS_POSTGRES_DSN", "")
	if got := resolvePostgresDSN(""); got != "postgres://database" {
		t.Fatalf("expected DATABASE_URL fallback, got %q", got)
	}
}

func TestResolveKeyringUsesConfiguredKeys(t *testing.T) {
	ring, err := resolveKeyring("alpha, beta", "", discardLogger())
	if err != nil {
		t.Fatalf("resolveKeyring returned error: %v", err)
	}
	if !ring.Verify("alpha") || !ring.Verify("beta") {
		t.Fatal("expected configured keys to verify")
	}
	if ring.Verify(devFallbackAPIKey) {
		t.Fatal("dev fallback key must not verify when keys are configured")
	}
}

func TestResolveKeyringFallsBackToDevKey(t *testing.T) {
	ring, err := resolveKeyring("", "", discardLogger())
	if err != nil {
		t.Fatalf("resolveKeyring returned error: %v", err)
	}
	if !ring.Verify(devFallbackAPIKey) {
		t.Fatal("expected dev fallback key to verify")
	}
}

func TestResolveKeyringReadsKeyFile(t *testing.T) {
	hashed, err := auth.HashAPIKey("hashed-key")
	if err != nil {
		t.Fatalf("HashAPIKey returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys")
	contents := "# comment\nplain-key\n" + hashed + "\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	ring, err := resolveKeyring("", path, discardLogger())
	if err != nil {
		t.Fatalf("resolveKeyring returned error: %v", err)
	}
	if !ring.Verify("plain-key") {
		t.Fatal("expected plaintext file entry to verify")
	}
	if !ring.Verify("hashed-key") {
		t.Fatal("expected hashed file entry to verify")
	}
	if ring.Verify(devFallbackAPIKey) {
		t.Fatal("dev fallback key must not verify when a key file is configured")
	}
}

func TestResolveKeyringMissingFileFails(t *testing.T) {
	if _, err := resolveKeyring("", filepath.Join(t.TempDir(), "absent"), discardLogger()); err == nil {
		t.Fatal("expected error for missing key file")
	}
}

func TestResolveVerifierDefaultsToStaticWithSecret(t *testing.T) {
	verifier, closer, err := resolveVerifier(verifierSettings{
		Secret:   "shared-secret",
		CacheTTL: time.Minute,
	}, discardLogger())
	if err != nil {
		t.Fatalf("resolveVerifier returned error: %v", err)
	}
	if verifier == nil {
		t.Fatal("expected a verifier when a secret is configured")
	}
	if _, ok := verifier.(*auth.CachingVerifier); !ok {
		t.Fatalf("expected caching verifier, got %T", verifier)
	}
	if closer == nil {
		t.Fatal("expected a closer for the caching verifier")
	}
	if err := closer(); err != nil {
		t.Fatalf("closer returned error: %v", err)
	}
}

func TestResolveVerifierDefaultsToRemoteWithURL(t *testing.T) {
	verifier, closer, err := resolveVerifier(verifierSettings{
		URL:      "https://id.example.com/introspect",
		Timeout:  time.Second,
		CacheTTL: time.Minute,
	}, discardLogger())
	if err != nil {
		t.Fatalf("resolveVerifier returned error: %v", err)
	}
	if verifier == nil {
		t.Fatal("expected a verifier when an introspection URL is configured")
	}
	if closer != nil {
		_ = closer()
	}
}

func TestResolveVerifierUnconfigured(t *testing.T) {
	verifier, closer, err := resolveVerifier(verifierSettings{}, discardLogger())
	if err != nil {
		t.Fatalf("resolveVerifier returned error: %v", err)
	}
	if verifier != nil {
		t.Fatalf("expected nil verifier without configuration, got %T", verifier)
	}
	if closer != nil {
		t.Fatal("expected nil closer without configuration")
	}
}

func TestResolveVerifierRejectsUnknownMode(t *testing.T) {
	if _, _, err := resolveVerifier(verifierSettings{Mode: "ldap"}, discardLogger()); err == nil {
		t.Fatal("expected error for unknown identity mode")
	}
}

func TestResolveEventPublisherDefaultsToNoop(t *testing.T) {
	publisher, err := resolveEventPublisher(eventSettings{})
	if err != nil {
		t.Fatalf("resolveEventPublisher returned error: %v", err)
	}
	if publisher == nil {
		t.Fatal("expected a publisher")
	}
}

func TestResolveEventPublisherRejectsUnknownDriver(t *testing.T) {
	if _, err := resolveEventPublisher(eventSettings{Driver: "kafka"}); err == nil {
		t.Fatal("expected error for unknown events driver")
	}
}

func TestResolveEventPublisherRedisRequiresAddr(t *testing.T) {
	if _, err := resolveEventPublisher(eventSettings{Driver: "redis"}); err == nil {
		t.Fatal("expected error when redis addr is missing")
	}
}

func TestResolveTokenCacheRedisNamespacesKeys(t *testing.T) {
	stub, err := redisstub.Start(redisstub.Options{})
	if err != nil {
		t.Fatalf("start redis stub: %v", err)
	}
	t.Cleanup(func() {
		_ = stub.Close()
	})

	cache, err := resolveTokenCache("redis", redisclient.Options{Addr: stub.Addr()})
	if err != nil {
		t.Fatalf("resolveTokenCache returned error: %v", err)
	}
	t.Cleanup(func() {
		if closer, ok := cache.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	})

	if err := cache.Save(context.Background(), "digest", auth.Identity{Subject: "admin-1"}, time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	keys := stub.Keys()
	if len(keys) != 1 {
		t.Fatalf("stored keys = %v, want exactly one", keys)
	}
	if want := auth.DefaultTokenCachePrefix + "digest"; keys[0] != want {
		t.Fatalf("cache key = %q, want %q", keys[0], want)
	}
}

func TestSplitAndTrim(t *testing.T) {
	if got := splitAndTrim(" a, ,b ,"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitAndTrim = %v", got)
	}
	if got := splitAndTrim("  "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestResolveInt64FromEnv(t *testing.T) {
	t.Setenv("VERITAS_MAX_UPLOAD_BYTES", "1024")
	if got := resolveInt64(0, "VERITAS_MAX_UPLOAD_BYTES"); got != 1024 {
		t.Fatalf("resolveInt64 = %d, want 1024", got)
	}
	if got := resolveInt64(2048, "VERITAS_MAX_UPLOAD_BYTES"); got != 2048 {
		t.Fatalf("flag value should win, got %d", got)
	}
}
