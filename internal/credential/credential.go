// Package credential defines the wire format of self-issued API keys:
//
//	znt_<environment>_sk_<32 alphanumeric characters>
//
// where environment is "test" or "live".
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const (
	ProductPrefix = "znt"
	TypeMarker    = "sk"
	BodyLength    = 32

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

type Environment string

const (
	EnvTest Environment = "test"
	EnvLive Environment = "live"
)

func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvTest, EnvLive:
		return Environment(s), nil
	}
	return "", fmt.Errorf("unknown key environment %q", s)
}

var pattern = regexp.MustCompile(`^znt_(test|live)_sk_[A-Za-z0-9]{32}$`)

// Valid reports whether raw has the shape of an issued key. It does no I/O.
func Valid(raw string) bool {
	return pattern.MatchString(raw)
}

// Generate returns a new raw key for env from crypto/rand.
func Generate(env Environment) (string, error) {
	body := make([]byte, 0, BodyLength)
	buf := make([]byte, BodyLength*2)

	// Rejection sampling keeps every alphabet character equally likely.
	limit := byte(256 - 256%len(alphabet))
	for len(body) < BodyLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			body = append(body, alphabet[int(b)%len(alphabet)])
			if len(body) == BodyLength {
				break
			}
		}
	}

	return StructuralPrefix(env) + string(body), nil
}

// StructuralPrefix is the non-secret head shared by every key of env.
func StructuralPrefix(env Environment) string {
	return ProductPrefix + "_" + string(env) + "_" + TypeMarker + "_"
}

// LookupPrefix returns the bucket a raw key is stored under. It is derived
// only from the structural prefix and never decides validity.
func LookupPrefix(raw string) string {
	i := strings.LastIndex(raw, "_")
	if i < 0 {
		return ""
	}
	return raw[:i+1]
}

// Hash is the one-way digest persisted for a raw key.
func Hash(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Mask renders a key for display without revealing its body.
func Mask(prefix string) string {
	return prefix + "…"
}
