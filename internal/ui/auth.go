package ui

import (
	"net/http"
	"strings"
	"time"

	"quarry/internal/domain"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

// Browser sessions carry the credential in a cookie; the bridge middleware
// promotes it to the same header the API middleware reads.
const (
	bearerCookieName = "quarry_bearer"
	apiKeyCookieName = "quarry_key"

	sessionTTL = 24 * time.Hour
)

// sessionCookie builds the cookie for one credential slot. An empty value
// produces an expired cookie, so setting one slot always clears the other.
func (h *Handler) sessionCookie(name, value string) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Production,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
		return c
	}
	c.Expires = time.Now().Add(sessionTTL)
	return c
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := domain.PrincipalFromContext(r.Context()); ok {
		http.Redirect(w, r, "/ui", http.StatusSeeOther)
		return
	}
	renderHTML(w, http.StatusOK, loginPage(strings.TrimSpace(r.URL.Query().Get("error"))))
}

func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/ui/login?error=invalid+form", http.StatusSeeOther)
		return
	}
	token := strings.TrimSpace(r.Form.Get("token"))
	if token == "" {
		http.Redirect(w, r, "/ui/login?error=token+is+required", http.StatusSeeOther)
		return
	}

	bearer, apiKey := token, ""
	if strings.TrimSpace(r.Form.Get("kind")) == "api_key" {
		bearer, apiKey = "", token
	}
	http.SetCookie(w, h.sessionCookie(bearerCookieName, bearer))
	http.SetCookie(w, h.sessionCookie(apiKeyCookieName, apiKey))
	http.Redirect(w, r, "/ui", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie(bearerCookieName, ""))
	http.SetCookie(w, h.sessionCookie(apiKeyCookieName, ""))
	http.Redirect(w, r, "/ui/login", http.StatusSeeOther)
}

// CookieHeaderBridge copies login cookies into the auth headers so browser
// sessions pass the same middleware API clients do. Explicit headers win.
func (h *Handler) CookieHeaderBridge(next http.Handler) http.Handler {
	promote := func(r *http.Request, cookieName, header, prefix string) {
		if r.Header.Get(header) != "" {
			return
		}
		cookie, err := r.Cookie(cookieName)
		if err != nil {
			return
		}
		if v := strings.TrimSpace(cookie.Value); v != "" {
			r.Header.Set(header, prefix+v)
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		promote(r, bearerCookieName, "Authorization", "Bearer ")
		if h.Auth.APIKeyEnabled {
			promote(r, apiKeyCookieName, h.Auth.APIKeyHeader, "")
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectToLogin is the auth failure handler for UI routes.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/ui") {
		http.Redirect(w, r, "/ui/login", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusUnauthorized)
}

func loginPage(errMsg string) Node {
	var banner Node
	if errMsg != "" {
		banner = P(Class("error"), Text("Error: "+errMsg))
	}

	form := Form(
		Method("post"),
		Action("/ui/login"),
		Class("login-form"),
		Label(Text("Credential type")),
		Select(
			Name("kind"),
			Option(Value("bearer"), Text("JWT bearer token")),
			Option(Value("api_key"), Text("API key")),
		),
		Label(Text("Token")),
		Textarea(
			Name("token"),
			Placeholder("Paste token here"),
			Required(),
		),
		Button(
			Type("submit"),
			Class("btn btn-primary"),
			Text("Sign In"),
		),
	)

	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text("Sign in | Quarry")),
			Link(Rel("icon"), Href("data:,")),
			Link(Rel("stylesheet"), Href("/ui/static/app.css")),
		),
		Body(
			Class("login-body"),
			Main(
				Class("login-wrap"),
				banner,
				H1(Text("Quarry")),
				P(Text("Sign in with a token for the read-only UI.")),
				form,
			),
		),
	)
}
