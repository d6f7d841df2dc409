package provider

import (
	"context"
	"net/http"
	"net/url"
)

const isGdBase = "https://is.gd"

// IsGd creates links with a GET request that asks for the simple text format
type IsGd struct {
	base string
	http *httpClient
}

func NewIsGd(opts Options) *IsGd {
	return &IsGd{
		base: opts.endpoint("isgd", isGdBase),
		http: newHTTPClient(opts),
	}
}

func (p *IsGd) Name() string { return "isgd" }

func (p *IsGd) Shorten(ctx context.Context, longURL string) (string, error) {
	q := url.Values{}
	q.Set("format", "simple")
	q.Set("url", longURL)

	req, err := http.NewRequest(http.MethodGet, p.base+"/create.php?"+q.Encode(), nil)
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
