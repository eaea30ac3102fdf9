package simpleasset

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signed-URL window bounds.
const (
	// bucketLead rounds the timestamp bucket up to the next hour once the
	// clock is within this many seconds of it.
	bucketLead = 600

	// bucketSpan is the width of one timestamp bucket.
	bucketSpan = 3600

	// DefaultSignatureTTL is the validation window applied when a caller
	// passes no explicit TTL.
	DefaultSignatureTTL = 3600
)

// Signer issues and validates the time-bucketed HMAC tokens embedded in an
// asset's public string form. Both operations are pure and safe for
// concurrent use.
//
// The signer carries the application-wide default secret, injected at
// construction; environment sourcing belongs to the assembly layer. Every
// method accepts an explicit secret that wins over the default, for tests
// and key rotation.
type Signer struct {
	secret string
}

// NewSigner creates a signer with the given default secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: secret}
}

// Issue returns the asset's public string form: `<id>.<ext>`, with `t` and
// `s` query parameters appended when a signature is required.
//
// Public and auth-checked assets are never signed: public ones need no
// gate, auth-checked ones are gated by a live authorization check instead.
// Passing signed=false opts out explicitly.
func (s *Signer) Issue(a *Asset, signed bool, secret string, now time.Time) string {
	base := fmt.Sprintf("%s.%s", a.ID, a.Extension())
	if a.IsPublic() || a.IsAuth() || !signed {
		return base
	}

	bucket := TimestampBucket(now)
	sig := s.signature(a.ID.String(), a.Extension(), bucket, secret)

	return fmt.Sprintf("%s?t=%d&s=%s", base, bucket, sig)
}

// Validate checks a token string against the secret and TTL. It is a pure
// predicate: any malformed, expired, implausible or tampered token yields
// false, and the caller decides the consequence.
func (s *Signer) Validate(token string, secret string, ttl int64, now time.Time) bool {
	if ttl <= 0 {
		ttl = DefaultSignatureTTL
	}

	parsed, err := url.Parse(token)
	if err != nil {
		return false
	}

	params := parsed.Query()
	rawBucket := params.Get("t")
	provided := params.Get("s")
	if rawBucket == "" || provided == "" {
		return false
	}

	bucket, err := strconv.ParseInt(rawBucket, 10, 64)
	if err != nil {
		return false
	}

	// Expired, or a bucket too far in the future to have been issued by a
	// well-behaved clock.
	if now.Unix() > bucket+ttl || now.Unix() < bucket-bucketSpan {
		return false
	}

	id, ext, ok := splitPublicForm(parsed.Path)
	if !ok {
		return false
	}

	expected := s.signature(id, ext, bucket, secret)
	return hmac.Equal([]byte(provided), []byte(expected))
}

// TimestampBucket quantizes now to the hour, rounding up once within ten
// minutes of the boundary. Tokens issued within a bucket are identical, so
// they stay cacheable for up to roughly an hour instead of being unique per
// request.
func TimestampBucket(now time.Time) int64 {
	return ((now.Unix() + bucketLead) / bucketSpan) * bucketSpan
}

func (s *Signer) signature(id, ext string, bucket int64, secret string) string {
	key := secret
	if key == "" {
		key = s.secret
	}

	mac := hmac.New(sha256.New, []byte(key))
	fmt.Fprintf(mac, "%s:%s:%d", id, ext, bucket)
	return hex.EncodeToString(mac.Sum(nil))
}

// splitPublicForm breaks `<identifier>.<extension>` at the last dot.
func splitPublicForm(base string) (id, ext string, ok bool) {
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			if i == 0 || i == len(base)-1 {
				return "", "", false
			}
			return base[:i], base[i+1:], true
		}
	}
	return "", "", false
}
