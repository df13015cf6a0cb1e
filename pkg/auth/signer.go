package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	signVersion = "ly-auth-v1"

	// DateHeader carries the signing timestamp alongside the
	// Authorization header.
	DateHeader = "x-ly-date"

	// defaultExpireSeconds is how long a computed signature stays
	// valid on the server side.
	defaultExpireSeconds = 1800

	timestampLayout = "2006-01-02T15:04:05Z"
)

// Signer signs each request with HMAC-SHA256 over a canonical request
// string. It holds no mutable state: identical inputs at an identical
// timestamp produce an identical signature.
type Signer struct {
	cred          Credential
	expireSeconds int

	// now is injectable for deterministic signatures in tests.
	now func() time.Time
}

// NewSigner creates a Signer for an access key / secret key pair.
func NewSigner(cred Credential) *Signer {
	return &Signer{
		cred:          cred,
		expireSeconds: defaultExpireSeconds,
		now:           time.Now,
	}
}

// Apply computes the signature for req and sets the Authorization and
// date headers.
func (s *Signer) Apply(_ context.Context, req *http.Request) error {
	timestamp := s.now().UTC().Format(timestampLayout)
	req.Header.Set(DateHeader, timestamp)
	if req.Header.Get("Host") == "" && req.Host == "" {
		req.Host = req.URL.Host
	}
	req.Header.Set("Authorization", s.sign(req, timestamp))
	return nil
}

// Refresh is a no-op: the signer is stateless.
func (s *Signer) Refresh(context.Context) error { return nil }

// sign builds the ly-auth-v1 Authorization value for req at the given
// timestamp:
//
//	ly-auth-v1/{ak}/{timestamp}/{expire}/{signedHeaders}/{signature}
func (s *Signer) sign(req *http.Request, timestamp string) string {
	prefix := strings.Join([]string{
		signVersion,
		s.cred.Key,
		timestamp,
		strconv.Itoa(s.expireSeconds),
	}, "/")

	signingKey := hmacHex([]byte(s.cred.Secret), prefix)

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req, timestamp)
	canonicalRequest := strings.Join([]string{
		req.Method,
		uriEncode(req.URL.Path, true),
		canonicalizeQuery(req.URL.Query()),
		canonicalHeaders,
	}, "\n")

	signature := hmacHex([]byte(signingKey), canonicalRequest)

	return prefix + "/" + signedHeaders + "/" + signature
}

// canonicalizeHeaders returns the sorted canonical header block and
// the semicolon-joined list of signed header names. Only host, the
// date header, and x-ly-* headers participate in the signature so
// intermediaries can add hop headers without breaking it.
func canonicalizeHeaders(req *http.Request, timestamp string) (canonical, signed string) {
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	entries := map[string]string{
		"host":     host,
		DateHeader: timestamp,
	}
	for name, values := range req.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-ly-") && len(values) > 0 {
			entries[lower] = values[0]
		}
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, uriEncode(name, false)+":"+uriEncode(strings.TrimSpace(entries[name]), false))
	}
	return strings.Join(lines, "\n"), strings.Join(names, ";")
}

// canonicalizeQuery sorts query parameters by encoded name and encodes
// both names and values with the signing escape table.
func canonicalizeQuery(query map[string][]string) string {
	var pairs []string
	for name, values := range query {
		encodedName := uriEncode(name, false)
		for _, value := range values {
			pairs = append(pairs, encodedName+"="+uriEncode(value, false))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// uriEncode percent-encodes s per RFC 3986: unreserved characters pass
// through, everything else becomes %XX with uppercase hex. With
// keepSlash set, path separators are preserved.
func uriEncode(s string, keepSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && keepSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
		}
	}
	return b.String()
}

// hmacHex computes hex(HMAC-SHA256(key, message)).
func hmacHex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
