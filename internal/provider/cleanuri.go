package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const cleanURIBase = "https://cleanuri.com"

// CleanURI creates links with a form POST and reads result_url from JSON
type CleanURI struct {
	base string
	http *httpClient
}

type cleanURIResponse struct {
	ResultURL string `json:"result_url"`
	Error     string `json:"error"`
}

func NewCleanURI(opts Options) *CleanURI {
	return &CleanURI{
		base: opts.endpoint("cleanuri", cleanURIBase),
		http: newHTTPClient(opts),
	}
}

func (p *CleanURI) Name() string { return "cleanuri" }

func (p *CleanURI) Shorten(ctx context.Context, longURL string) (string, error) {
	form := url.Values{}
	form.Set("url", longURL)

	req, err := http.NewRequest(http.MethodPost, p.base+"/api/v1/shorten", strings.NewReader(form.Encode()))
	if err != nil {
		return "", newError(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := p.http.do(ctx, req)
	if err != nil {
		return "", newError(p.Name(), err)
	}

	var resp cleanURIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", newError(p.Name(), fmt.Errorf("%w: %v", ErrMalformedBody, err))
	}
	if resp.Error != "" {
		return "", newError(p.Name(), errors.New(resp.Error))
	}
	if strings.TrimSpace(resp.ResultURL) == "" {
		return "", newError(p.Name(), ErrMalformedBody)
	}

	return strings.TrimSpace(resp.ResultURL), nil
}
