package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// CacheKey identifies a semantically unique bin or baseplate request.
// Only equality is meaningful.
type CacheKey string

// keyDigestLen is the number of hex characters kept from the SHA-256 digest.
const keyDigestLen = 32

// DeriveKey returns the cache key for a cacheable request and "" for plate
// kinds, which are never cached.
func DeriveKey(r GenerationRequest) CacheKey {
	switch {
	case r.Kind == KindBin && r.Bin != nil:
		return BinKey(*r.Bin)
	case r.Kind == KindBaseplate && r.Baseplate != nil:
		return BaseplateKey(*r.Baseplate)
	}
	return ""
}

// BinKey derives the cache key of a bin.
func BinKey(s BinSpec) CacheKey { return digest(KindBin, s.Canonical()) }

// BaseplateKey derives the cache key of a baseplate.
func BaseplateKey(s BaseplateSpec) CacheKey { return digest(KindBaseplate, s) }

// Canonical returns the form used for hashing: a blank label is the same
// request as no label.
func (b BinSpec) Canonical() BinSpec {
	if b.Label != nil && strings.TrimSpace(*b.Label) == "" {
		b.Label = nil
	}
	return b
}

// digest hashes the JSON encoding of v. Struct fields marshal in declaration
// order, which makes the encoding canonical once defaults are filled.
func digest(kind Kind, v any) CacheKey {
	data, err := json.Marshal(v)
	if err != nil {
		// Only non-finite floats fail to marshal; fall back to the Go syntax
		// representation so derivation stays total.
		data = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha256.Sum256(data)
	return CacheKey(string(kind) + "-" + hex.EncodeToString(sum[:])[:keyDigestLen])
}
