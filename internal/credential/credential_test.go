package credential

import (
	"strings"
	"testing"
)

func TestGenerate_Format(t *testing.T) {
	for _, env := range []Environment{EnvTest, EnvLive} {
		t.Run(string(env), func(t *testing.T) {
			raw, err := Generate(env)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if !Valid(raw) {
				t.Errorf("generated key %q does not match the credential grammar", raw)
			}
			if !strings.HasPrefix(raw, "znt_"+string(env)+"_sk_") {
				t.Errorf("unexpected prefix in %q", raw)
			}
		})
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		raw, err := Generate(EnvTest)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if _, dup := seen[raw]; dup {
			t.Fatalf("duplicate key after %d generations", i)
		}
		seen[raw] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	body := strings.Repeat("a1B2", 8)
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"test key", "znt_test_sk_" + body, true},
		{"live key", "znt_live_sk_" + body, true},
		{"unknown environment", "znt_prod_sk_" + body, false},
		{"wrong product", "abc_test_sk_" + body, false},
		{"wrong type marker", "znt_test_pk_" + body, false},
		{"short body", "znt_test_sk_" + body[:31], false},
		{"long body", "znt_test_sk_" + body + "x", false},
		{"symbol in body", "znt_test_sk_" + body[:31] + "-", false},
		{"bearer token", "eyJhbGciOiJIUzI1NiJ9.e30.sig", false},
		{"empty", "", false},
		{"trailing newline", "znt_test_sk_" + body + "\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.raw); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLookupPrefix(t *testing.T) {
	raw, _ := Generate(EnvLive)
	if got := LookupPrefix(raw); got != "znt_live_sk_" {
		t.Errorf("LookupPrefix() = %q", got)
	}
	if got := LookupPrefix(raw); got != StructuralPrefix(EnvLive) {
		t.Errorf("LookupPrefix() = %q, want structural prefix", got)
	}
	if LookupPrefix("nounderscore") != "" {
		t.Error("expected empty prefix")
	}
}

func TestHash(t *testing.T) {
	raw, _ := Generate(EnvTest)
	digest := Hash(raw)

	if digest == raw || strings.Contains(digest, raw) {
		t.Error("digest must not contain the raw key")
	}
	if len(digest) != 64 {
		t.Errorf("digest length = %d, want 64", len(digest))
	}
	if Hash(raw) != digest {
		t.Error("hash must be deterministic")
	}

	other, _ := Generate(EnvTest)
	if Hash(other) == digest {
		t.Error("different keys must hash differently")
	}
}

func TestParseEnvironment(t *testing.T) {
	if env, err := ParseEnvironment("live"); err != nil || env != EnvLive {
		t.Errorf("ParseEnvironment(live) = %v, %v", env, err)
	}
	if _, err := ParseEnvironment("staging"); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestMask(t *testing.T) {
	if got := Mask("znt_test_sk_"); got != "znt_test_sk_…" {
		t.Errorf("Mask() = %q", got)
	}
}
