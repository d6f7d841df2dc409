package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shortlink-bot/pkg/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== HELPER FUNCTIONS ====================

func optionsFor(name, base string) Options {
	return Options{
		Timeout:   2 * time.Second,
		UserAgent: "test-agent",
		Endpoints: map[string]string{name: base},
	}
}

func assertProviderError(t *testing.T, err error, name string, target error) {
	t.Helper()
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr), "expected *provider.Error, got %T", err)
	assert.Equal(t, name, perr.Provider)
	if target != nil {
		assert.ErrorIs(t, err, target)
	}
}

// ==================== TINYURL TESTS ====================

func TestTinyURL_Success(t *testing.T) {
	// Arrange
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api-create.php", r.URL.Path)
		gotQuery = r.URL.Query().Get("url")
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("https://tinyurl.com/abc123\n"))
	}))
	defer srv.Close()

	p := NewTinyURL(optionsFor("tinyurl", srv.URL))

	// Act
	short, err := p.Shorten(context.Background(), "https://example.com/a?b=c")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://tinyurl.com/abc123", short)
	assert.Equal(t, "https://example.com/a?b=c", gotQuery)
	assert.Equal(t, "test-agent", gotAgent)
}

func TestTinyURL_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewTinyURL(optionsFor("tinyurl", srv.URL))

	_, err := p.Shorten(context.Background(), "https://example.com")

	assertProviderError(t, err, "tinyurl", ErrBadStatus)
}

func TestTinyURL_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewTinyURL(optionsFor("tinyurl", srv.URL))

	_, err := p.Shorten(context.Background(), "https://example.com")

	assertProviderError(t, err, "tinyurl", ErrMalformedBody)
}

func TestTinyURL_Timeout(t *testing.T) {
	// Arrange
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	opts := optionsFor("tinyurl", srv.URL)
	opts.Timeout = 50 * time.Millisecond
	p := NewTinyURL(opts)

	// Act
	start := time.Now()
	_, err := p.Shorten(context.Background(), "https://example.com")

	// Assert
	assertProviderError(t, err, "tinyurl", nil)
	assert.Less(t, time.Since(start), time.Second)
}

// ==================== ISGD TESTS ====================

func TestIsGd_Success(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/create.php", r.URL.Path)
		assert.Equal(t, "simple", r.URL.Query().Get("format"))
		assert.Equal(t, "https://example.com", r.URL.Query().Get("url"))
		w.Write([]byte("https://is.gd/xYz"))
	}))
	defer srv.Close()

	p := NewIsGd(optionsFor("isgd", srv.URL))

	// Act
	short, err := p.Shorten(context.Background(), "https://example.com")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://is.gd/xYz", short)
}

func TestIsGd_ErrorText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Error: Please enter a valid URL to shorten"))
	}))
	defer srv.Close()

	p := NewIsGd(optionsFor("isgd", srv.URL))

	_, err := p.Shorten(context.Background(), "https://example.com")

	assertProviderError(t, err, "isgd", ErrMalformedBody)
}

// ==================== CLEANURI TESTS ====================

func TestCleanURI_Success(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/shorten", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://example.com/long", r.PostForm.Get("url"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result_url":"https:\/\/cleanuri.com\/k9"}`))
	}))
	defer srv.Close()

	p := NewCleanURI(optionsFor("cleanuri", srv.URL))

	// Act
	short, err := p.Shorten(context.Background(), "https://example.com/long")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://cleanuri.com/k9", short)
}

func TestCleanURI_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{name: "server error", status: http.StatusBadGateway, body: "", target: ErrBadStatus},
		{name: "not json", status: http.StatusOK, body: "<html>", target: ErrMalformedBody},
		{name: "missing field", status: http.StatusOK, body: `{}`, target: ErrMalformedBody},
		{name: "api error", status: http.StatusOK, body: `{"error":"API Error: URL is empty"}`, target: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewCleanURI(optionsFor("cleanuri", srv.URL))

			_, err := p.Shorten(context.Background(), "https://example.com")

			assertProviderError(t, err, "cleanuri", tt.target)
		})
	}
}

// ==================== HASH TESTS ====================

func TestHash_Deterministic(t *testing.T) {
	p := NewHash(Options{HashDomain: "https://h.test/"})

	first, err := p.Shorten(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	second, err := p.Shorten(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	other, err := p.Shorten(context.Background(), "https://example.com/other")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.True(t, strings.HasPrefix(first, "https://h.test/"))
	assert.NoError(t, validator.ValidateShortURL(first))
}

func TestHash_DefaultDomain(t *testing.T) {
	p := NewHash(Options{})

	short, err := p.Shorten(context.Background(), "https://example.com")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(short, DefaultHashDomain+"/"))
}

func TestEncodeBase62(t *testing.T) {
	assert.Equal(t, "0", encodeBase62(0))
	assert.Equal(t, "Z", encodeBase62(61))
	assert.Equal(t, "10", encodeBase62(62))
}

// ==================== FALLBACK TESTS ====================

func TestFallback_Synthesize(t *testing.T) {
	f := NewFallback("sl.test/")

	a := f.Synthesize("https://example.com")
	b := f.Synthesize("https://example.com")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "https://sl.test/"))
	assert.NoError(t, validator.ValidateShortURL(a))
	assert.NoError(t, validator.ValidateShortURL(b))
}

func TestFallback_DefaultDomain(t *testing.T) {
	f := NewFallback("")

	assert.Equal(t, DefaultFallbackDomain, f.Domain())
	assert.Len(t, strings.TrimPrefix(f.Synthesize("x"), DefaultFallbackDomain+"/"), fallbackTokenLength)
}

// ==================== REGISTRY TESTS ====================

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		names     []string
		want      []string
		expectErr error
	}{
		{name: "defaults", names: nil, want: []string{"tinyurl", "isgd", "cleanuri", "hash"}},
		{name: "custom order", names: []string{" Hash", "isgd "}, want: []string{"hash", "isgd"}},
		{name: "unknown", names: []string{"bitly"}, expectErr: ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := Build(tt.names, Options{})

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			got := make([]string, 0, len(providers))
			for _, p := range providers {
				got = append(got, p.Name())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild_UnknownListsKnownNames(t *testing.T) {
	_, err := Build([]string{"bitly"}, Options{})

	require.ErrorIs(t, err, ErrUnknown)
	assert.Contains(t, err.Error(), `"bitly"`)
	assert.Contains(t, err.Error(), "known: tinyurl, isgd, cleanuri, hash")
}

func TestBuild_Duplicate(t *testing.T) {
	_, err := Build([]string{"isgd", "isgd"}, Options{})
	assert.Error(t, err)
}
