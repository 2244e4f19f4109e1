package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/monocle-dev/scrumboard/internal/logging"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/types"
	"gorm.io/gorm"
)

const LoginPath = "/login"

var (
	cookieDomain string
	cookieSecure = true
)

// ConfigureCookies sets the attributes of every session cookie issued.
func ConfigureCookies(domain string, secure bool) {
	cookieDomain = domain
	cookieSecure = secure
}

func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, sessionCookie(token, int(SessionTTL.Seconds())))
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, sessionCookie("", -1))
}

func sessionCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if !cookieSecure {
		sameSite = http.SameSiteLaxMode
	}

	return &http.Cookie{
		Name:     types.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   cookieDomain,
		MaxAge:   maxAge,
		Secure:   cookieSecure,
		HttpOnly: true,
		SameSite: sameSite,
	}
}

// SessionToken extracts the raw token from the session cookie, falling back
// to an "Authorization: Bearer" header for API clients.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(types.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}

	return ""
}

// LoadSession resolves the calling user. It returns nil without an error
// when the session is absent, invalid, expired or points at a deleted user,
// and an error only when the user lookup itself fails.
func LoadSession(tx *gorm.DB, r *http.Request) (*models.User, error) {
	token := SessionToken(r)
	if token == "" {
		return nil, nil
	}

	userID, err := VerifySessionToken(token)
	if err != nil {
		return nil, nil
	}

	var user models.User
	if err := tx.WithContext(r.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session user %d: %w", userID, err)
	}

	return &user, nil
}

// GetSessionData resolves the calling user, or nil when there is no usable
// session. Lookup failures are logged and also yield nil.
func GetSessionData(tx *gorm.DB, r *http.Request) *models.User {
	user, err := LoadSession(tx, r)
	if err != nil {
		logging.Logger.Error("session lookup failed", "err", err)
		return nil
	}
	return user
}

// RequireAuth returns the login redirect target when the request has no
// valid session, or "" to continue.
func RequireAuth(tx *gorm.DB, r *http.Request) string {
	if GetSessionData(tx, r) == nil {
		return LoginPath
	}
	return ""
}
