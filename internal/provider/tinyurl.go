package provider

import (
	"context"
	"net/http"
	"net/url"
)

const tinyURLBase = "https://tinyurl.com"

// TinyURL creates links with a plain GET request
type TinyURL struct {
	base string
	http *httpClient
}

func NewTinyURL(opts Options) *TinyURL {
	return &TinyURL{
		base: opts.endpoint("tinyurl", tinyURLBase),
		http: newHTTPClient(opts),
	}
}

func (p *TinyURL) Name() string { return "tinyurl" }

func (p *TinyURL) Shorten(ctx context.Context, longURL string) (string, error) {
	endpoint := p.base + "/api-create.php?url=" + url.QueryEscape(longURL)

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return "", newError(p.Name(), err)
	}

	body, err := p.http.do(ctx, req)
	if err != nil {
		return "", newError(p.Name(), err)
	}

	short, err := plainText(body)
	if err != nil {
		return "", newError(p.Name(), err)
	}
	return short, nil
}
