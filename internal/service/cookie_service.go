package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal"
)

const sessionIDKey = "session_id"

var ErrNoSession = errors.New("no session in cookie")

// CookieService signs and encrypts the session cookie.
type CookieService struct {
	codec   *securecookie.SecureCookie
	domain  string
	expires time.Duration
	now     func() time.Time
}

func NewCookieService(hashKey, blockKey []byte, domain string, expires time.Duration) *CookieService {
	return &CookieService{
		codec:   securecookie.New(hashKey, blockKey),
		domain:  domain,
		expires: expires,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (cs *CookieService) GetSessionID(c echo.Context) (string, error) {
	cookie, err := c.Cookie(internal.SessionCookie)
	if err != nil {
		return "", err
	}
	values := make(map[string]string)
	if err := cs.codec.Decode(internal.SessionCookie, cookie.Value, &values); err != nil {
		return "", err
	}
	id, ok := values[sessionIDKey]
	if !ok || id == "" {
		return "", ErrNoSession
	}
	return id, nil
}

func (cs *CookieService) SetSessionCookie(c echo.Context, sessionID string) error {
	encoded, err := cs.codec.Encode(internal.SessionCookie, map[string]string{sessionIDKey: sessionID})
	if err != nil {
		return err
	}
	c.SetCookie(cs.cookie(encoded, cs.now().Add(cs.expires)))
	return nil
}

func (cs *CookieService) RemoveSessionCookie(c echo.Context) {
	c.SetCookie(cs.cookie("", cs.now()))
}

func (cs *CookieService) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     internal.SessionCookie,
		Value:    value,
		Path:     "/",
		Secure:   cs.domain != "localhost",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		Domain:   cs.domain,
	}
}
