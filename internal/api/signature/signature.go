// Package signature verifies the HMAC-SHA256 signature the storefront platform
// attaches to proxied query parameters.
//
// The signed message is the canonical form of every parameter except the
// signature itself: keys sorted by raw byte order, each rendered as key=value
// with multiple values joined by a comma, pairs concatenated without a
// separator. The digest is rendered as lowercase hex.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Param is the query parameter carrying the signature
const Param = "signature"

// Canonicalize renders params in the exact byte form the signer hashes
func Canonicalize(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == Param {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
	}
	return b.String()
}

// Sign computes the lowercase hex HMAC-SHA256 of the canonical form of params
func Sign(params url.Values, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(Canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signatureHex is the signature of params under secret.
// An empty signature never verifies.
func Verify(params url.Values, signatureHex string, secret []byte) bool {
	if signatureHex == "" {
		return false
	}
	expected := Sign(params, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureHex)) == 1
}

// Flatten returns params without the signature, multi-values comma-joined as
// they were signed
func Flatten(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if k == Param {
			continue
		}
		out[k] = strings.Join(v, ",")
	}
	return out
}
