package auth

import (
	"strings"
	"testing"
)

func TestKeyringVerifyPlaintext(t *testing.T) {
	ring, err := NewKeyring([]string{"mobile-key-1", "mobile-key-2"}, nil)
	if err != nil {
		t.Fatalf("NewKeyring returned error: %v", err)
	}
	cases := []struct {
		name      string
		candidate string
		want      bool
	}{
		{name: "FirstKey", candidate: "mobile-key-1", want: true},
		{name: "SecondKey", candidate: "mobile-key-2", want: true},
		{name: "WrongKey", candidate: "mobile-key-3", want: false},
		{name: "Empty", candidate: "", want: false},
		{name: "Prefix", candidate: "mobile-key", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ring.Verify(tc.candidate); got != tc.want {
				t.Fatalf("Verify(%q) = %v, want %v", tc.candidate, got, tc.want)
			}
		})
	}
}

func TestKeyringVerifyHashedEntries(t *testing.T) {
	entry, err := HashAPIKey("upload-secret")
	if err != nil {
		t.Fatalf("HashAPIKey returned error: %v", err)
	}
	if !strings.HasPrefix(entry, "pbkdf2$sha256$120000$") {
		t.Fatalf("unexpected hash format: %s", entry)
	}
	ring, err := NewKeyring(nil, []string{entry})
	if err != nil {
		t.Fatalf("NewKeyring returned error: %v", err)
	}
	if !ring.Verify("upload-secret") {
		t.Fatal("expected hashed key to verify")
	}
	if ring.Verify("other-secret") {
		t.Fatal("expected mismatched key to fail")
	}
}

func TestKeyringMixesPlaintextAndHashed(t *testing.T) {
	entry, err := HashAPIKey("hashed-key")
	if err != nil {
		t.Fatalf("HashAPIKey returned error: %v", err)
	}
	ring, err := NewKeyring([]string{"plain-key"}, []string{entry})
	if err != nil {
		t.Fatalf("NewKeyring returned error: %v", err)
	}
	if got := ring.Size(); got != 2 {
		t.Fatalf("Size() = %d, want 2", got)
	}
	if !ring.Verify("plain-key") || !ring.Verify("hashed-key") {
		t.Fatal("expected both keys to verify")
	}
}

func TestNewKeyringRejectsMalformedEntry(t *testing.T) {
	cases := []struct {
		name  string
		entry string
	}{
		{name: "Plaintext", entry: "not-a-hash"},
		{name: "WrongAlgorithm", entry: "pbkdf2$md5$120000$AA$BB"},
		{name: "BadIterations", entry: "pbkdf2$sha256$zero$AA$BB"},
		{name: "BadSalt", entry: "pbkdf2$sha256$120000$!!$BB"},
		{name: "EmptyDigest", entry: "pbkdf2$sha256$120000$AA$"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewKeyring(nil, []string{tc.entry}); err == nil {
				t.Fatalf("expected error for entry %q", tc.entry)
			}
		})
	}
}

func TestNewKeyringRequiresAtLeastOneKey(t *testing.T) {
	if _, err := NewKeyring([]string{"  ", ""}, nil); err == nil {
		t.Fatal("expected error when no keys survive trimming")
	}
}

func TestParseKeyFileSkipsCommentsAndBlanks(t *testing.T) {
	data := []byte("# managed by ops\n\npbkdf2$sha256$1$AA$BB\n  \n# trailing comment\n")
	entries := ParseKeyFile(data)
	if len(entries) != 1 || entries[0] != "pbkdf2$sha256$1$AA$BB" {
		t.Fatalf("unexpected entries: %v", entries)
	}
}

func TestGenerateAPIKeyProducesDistinctValues(t *testing.T) {
	first, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey returned error: %v", err)
	}
	second, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct keys")
	}
	if len(first) != 64 {
		t.Fatalf("key length = %d, want 64", len(first))
	}
}
