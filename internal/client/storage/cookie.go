package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// maxCookieSize is the per-cookie limit browsers and most servers accept
// (name plus value).
const maxCookieSize = 4096

// CookieTier keeps values as cookies in a jar scoped to the auth server
// URL. The same jar is installed in the HTTP transport, so stored values
// travel with every request. Values are base64url encoded because cookie
// values cannot carry arbitrary bytes.
type CookieTier struct {
	jar http.CookieJar
	u   *url.URL
	ttl time.Duration
}

func NewCookieTier(jar http.CookieJar, serverURL *url.URL, ttl time.Duration) *CookieTier {
	return &CookieTier{jar: jar, u: serverURL, ttl: ttl}
}

func (t *CookieTier) Name() string { return "cookie" }

func (t *CookieTier) Get(_ context.Context, key string) (string, bool, error) {
	for _, c := range t.jar.Cookies(t.u) {
		if c.Name != key {
			continue
		}
		v, err := base64.RawURLEncoding.DecodeString(c.Value)
		if err != nil {
			return "", false, fmt.Errorf("cookie %s: %w", key, err)
		}
		return string(v), true, nil
	}
	return "", false, nil
}

func (t *CookieTier) Set(_ context.Context, key, value string) error {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(value))
	if len(key)+len(encoded) > maxCookieSize {
		return fmt.Errorf("cookie %s: %w", key, ErrCookieTooLarge)
	}

	c := &http.Cookie{Name: key, Value: encoded, Path: "/", HttpOnly: true, SameSite: http.SameSiteStrictMode}
	if t.ttl > 0 {
		c.MaxAge = int(t.ttl.Seconds())
	}
	t.jar.SetCookies(t.u, []*http.Cookie{c})
	return nil
}

func (t *CookieTier) Delete(_ context.Context, key string) error {
	t.jar.SetCookies(t.u, []*http.Cookie{{Name: key, Path: "/", MaxAge: -1}})
	return nil
}
