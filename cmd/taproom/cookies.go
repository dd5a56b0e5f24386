package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/taproom-client/securestore"
)

// cookiesKey holds the backend's cookies (the remember-me cookie in
// particular) between runs.
const cookiesKey = "http.cookies"

type savedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// cookieStore is an http.CookieJar that remembers what the backend set so it
// can be written to the secure store when the command finishes. Only cookies
// for the configured base URL are kept.
type cookieStore struct {
	jar     *cookiejar.Jar
	storage securestore.Storage
	base    *url.URL
	now     func() time.Time

	mu    sync.Mutex
	saved map[string]savedCookie
	dirty bool
}

var _ http.CookieJar = (*cookieStore)(nil)

func newCookieStore(storage securestore.Storage, baseURL string) (*cookieStore, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[newCookieStore] parse base url")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "[newCookieStore] new jar")
	}
	return &cookieStore{
		jar:     jar,
		storage: storage,
		base:    base,
		now:     time.Now,
		saved:   map[string]savedCookie{},
	}, nil
}

func (c *cookieStore) Cookies(u *url.URL) []*http.Cookie {
	return c.jar.Cookies(u)
}

func (c *cookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.jar.SetCookies(u, cookies)
	if u.Host != c.base.Host {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, cookie := range cookies {
		expires := cookie.Expires
		if cookie.MaxAge > 0 {
			expires = now.Add(time.Duration(cookie.MaxAge) * time.Second)
		}
		if cookie.MaxAge < 0 || cookie.Value == "" || (!expires.IsZero() && !expires.After(now)) {
			delete(c.saved, cookie.Name)
		} else {
			c.saved[cookie.Name] = savedCookie{
				Name:     cookie.Name,
				Value:    cookie.Value,
				Path:     cookie.Path,
				Expires:  expires,
				Secure:   cookie.Secure,
				HttpOnly: cookie.HttpOnly,
			}
		}
		c.dirty = true
	}
}

// restore loads cookies saved by an earlier run into the jar. Expired entries
// are dropped; an unreadable record is treated as empty.
func (c *cookieStore) restore(ctx context.Context) error {
	value, err := c.storage.Get(ctx, cookiesKey)
	if errors.Is(err, securestore.ErrNotFound) || errors.Is(err, securestore.ErrLocked) || errors.Is(err, securestore.ErrSealed) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[cookieStore.restore] get")
	}
	var stored []savedCookie
	if err := json.Unmarshal(value, &stored); err != nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		if s.Name == "" || (!s.Expires.IsZero() && !s.Expires.After(now)) {
			continue
		}
		c.saved[s.Name] = s
		cookies = append(cookies, &http.Cookie{
			Name:     s.Name,
			Value:    s.Value,
			Path:     s.Path,
			Expires:  s.Expires,
			Secure:   s.Secure,
			HttpOnly: s.HttpOnly,
		})
	}
	c.jar.SetCookies(c.base, cookies)
	return nil
}

// flush writes the cookies back when the backend changed any of them.
func (c *cookieStore) flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if len(c.saved) == 0 {
		if err := c.storage.Delete(ctx, cookiesKey); err != nil && !errors.Is(err, securestore.ErrNotFound) {
			return errors.Wrap(err, "[cookieStore.flush] delete")
		}
		c.dirty = false
		return nil
	}
	stored := make([]savedCookie, 0, len(c.saved))
	for _, s := range c.saved {
		stored = append(stored, s)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "[cookieStore.flush] marshal")
	}
	if err := c.storage.Set(ctx, cookiesKey, data); err != nil {
		return errors.Wrap(err, "[cookieStore.flush] set")
	}
	c.dirty = false
	return nil
}
