package provider

import (
	"context"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultHashDomain = "https://sl.local/h"
	hashCodeLength    = 8
)

const base62Charset = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Hash derives a short path from the URL itself; it never touches the network.
// The same long URL always maps to the same short URL.
type Hash struct {
	domain string
}

func NewHash(opts Options) *Hash {
	domain := opts.HashDomain
	if domain == "" {
		domain = DefaultHashDomain
	}
	return &Hash{domain: strings.TrimRight(domain, "/")}
}

func (p *Hash) Name() string { return "hash" }

func (p *Hash) Shorten(ctx context.Context, longURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newError(p.Name(), err)
	}
	if longURL == "" {
		return "", newError(p.Name(), ErrMalformedBody)
	}

	code := encodeBase62(xxhash.Sum64String(longURL))
	if len(code) > hashCodeLength {
		code = code[:hashCodeLength]
	}
	return p.domain + "/" + code, nil
}

func encodeBase62(n uint64) string {
	if n == 0 {
		return string(base62Charset[0])
	}
	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base62Charset[n%62]
		n /= 62
	}
	return string(buf[i:])
}
