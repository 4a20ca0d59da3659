package cors

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lanPattern = `^http://\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:3004$`

func newTestAuthorizer(t *testing.T) *Authorizer {
	t.Helper()
	lan, err := Regex(lanPattern)
	require.NoError(t, err)
	return NewAuthorizer(
		Exact("https://tadasedl.vercel.app"),
		Exact("https://app.example.com"),
		lan,
	)
}

func TestAuthorizer_Authorize(t *testing.T) {
	t.Parallel()

	a := newTestAuthorizer(t)

	tests := []struct {
		name     string
		origin   string
		allowed  bool
		echoed   string
		rejected bool
	}{
		{name: "no origin", origin: "", allowed: true, echoed: ""},
		{name: "exact literal", origin: "https://tadasedl.vercel.app", allowed: true, echoed: "https://tadasedl.vercel.app"},
		{name: "second literal", origin: "https://app.example.com", allowed: true, echoed: "https://app.example.com"},
		{name: "regex ip and port", origin: "http://10.0.0.5:3004", allowed: true, echoed: "http://10.0.0.5:3004"},
		{name: "regex wrong port", origin: "http://10.0.0.5:3005", rejected: true},
		{name: "regex needs full match", origin: "http://10.0.0.5:3004.evil.com", rejected: true},
		{name: "regex prefix garbage", origin: "xhttp://10.0.0.5:3004", rejected: true},
		{name: "literal with trailing slash", origin: "https://app.example.com/", rejected: true},
		{name: "literal case differs", origin: "https://APP.example.com", rejected: true},
		{name: "unknown origin", origin: "http://evil.example.com", rejected: true},
		{name: "null origin", origin: "null", rejected: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, err := a.Authorize(tt.origin)
			if tt.rejected {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrOriginRejected))
				var rej *RejectedError
				require.True(t, errors.As(err, &rej))
				assert.Equal(t, tt.origin, rej.Origin)
				assert.False(t, d.Allowed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.echoed, d.Origin)
		})
	}
}

func TestAuthorizer_EmptySetStillAllowsMissingOrigin(t *testing.T) {
	t.Parallel()

	a := NewAuthorizer()
	d, err := a.Authorize("")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = a.Authorize("https://app.example.com")
	assert.ErrorIs(t, err, ErrOriginRejected)
}

func TestAuthorizer_OrderDoesNotMatter(t *testing.T) {
	t.Parallel()

	lan := MustRegex(lanPattern)
	lit := Exact("https://app.example.com")
	forward := NewAuthorizer(lit, lan)
	backward := NewAuthorizer(lan, lit)

	for _, origin := range []string{"", "https://app.example.com", "http://192.168.1.20:3004", "http://evil.example.com"} {
		d1, err1 := forward.Authorize(origin)
		d2, err2 := backward.Authorize(origin)
		assert.Equal(t, d1, d2, origin)
		assert.Equal(t, err1 == nil, err2 == nil, origin)
	}
}

func TestAuthorizer_Idempotent(t *testing.T) {
	t.Parallel()

	a := newTestAuthorizer(t)
	first, firstErr := a.Authorize("http://10.1.2.3:3004")
	for i := 0; i < 100; i++ {
		d, err := a.Authorize("http://10.1.2.3:3004")
		assert.Equal(t, first, d)
		assert.Equal(t, firstErr, err)
	}
}

func TestAuthorizer_CallerSliceIsCopied(t *testing.T) {
	t.Parallel()

	patterns := []Pattern{Exact("https://app.example.com")}
	a := NewAuthorizer(patterns...)
	patterns[0] = Exact("http://evil.example.com")

	_, err := a.Authorize("http://evil.example.com")
	assert.ErrorIs(t, err, ErrOriginRejected)

	got := a.Patterns()
	got[0] = Exact("http://evil.example.com")
	_, err = a.Authorize("https://app.example.com")
	assert.NoError(t, err)
}

func TestAuthorizer_Concurrent(t *testing.T) {
	t.Parallel()

	a := newTestAuthorizer(t)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				d, err := a.Authorize("https://tadasedl.vercel.app")
				if err != nil || !d.Allowed {
					t.Errorf("unexpected decision %+v, %v", d, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestDecision_Apply(t *testing.T) {
	t.Parallel()

	t.Run("allowed origin", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		Decision{Allowed: true, Origin: "https://app.example.com"}.Apply(h)

		assert.Equal(t, "https://app.example.com", h.Get("Access-Control-Allow-Origin"))
		assert.NotEqual(t, "*", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", h.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization, x-jwt-token", h.Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "Origin", h.Get("Vary"))
	})

	t.Run("missing origin writes nothing", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		Decision{Allowed: true}.Apply(h)
		assert.Empty(t, h)
	})

	t.Run("denied writes nothing", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		Decision{Origin: "http://evil.example.com"}.Apply(h)
		assert.Empty(t, h)
	})
}

func TestRejectedError_Message(t *testing.T) {
	t.Parallel()

	err := &RejectedError{Origin: "http://evil.example.com"}
	assert.Equal(t, `origin "http://evil.example.com": Not allowed by CORS`, err.Error())
}
