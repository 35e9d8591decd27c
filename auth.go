package ments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/ments/mailer"
)

const (
	adminSessionName = "admin_session"
	minPasswordLen   = 8
	adminContextKey  = "ments.admin"
)

// AdminSession resolves and persists the signed-in back-office account.
type AdminSession interface {
	CurrentAdmin(c echo.Context) (Admin, bool)
	SignIn(c echo.Context, admin Admin) error
	SignOut(c echo.Context) error
}

// AdminLookup loads an admin by id.
type AdminLookup interface {
	GetAdmin(ctx context.Context, id int64) (Admin, error)
}

// CookieSession keeps the admin id in the gorilla cookie session and
// reloads the account on every request, so deleted or unverified admins
// lose access immediately.
type CookieSession struct {
	Admins AdminLookup
}

// CurrentAdmin returns the verified admin bound to the request.
func (s CookieSession) CurrentAdmin(c echo.Context) (Admin, bool) {
	if a, ok := c.Get(adminContextKey).(Admin); ok {
		return a, true
	}
	sess, err := session.Get(adminSessionName, c)
	if err != nil {
		return Admin{}, false
	}
	id, ok := sess.Values["admin_id"].(int64)
	if !ok || id == 0 {
		return Admin{}, false
	}
	admin, err := s.Admins.GetAdmin(c.Request().Context(), id)
	if err != nil || !admin.Verified {
		return Admin{}, false
	}
	c.Set(adminContextKey, admin)
	return admin, true
}

// SignIn stores the admin id in the session cookie.
func (s CookieSession) SignIn(c echo.Context, admin Admin) error {
	sess, err := session.Get(adminSessionName, c)
	if err != nil {
		return err
	}
	sess.Values["admin_id"] = admin.ID
	return sess.Save(c.Request(), c.Response())
}

// SignOut expires the session cookie.
func (s CookieSession) SignOut(c echo.Context) error {
	sess, err := session.Get(adminSessionName, c)
	if err != nil {
		return err
	}
	delete(sess.Values, "admin_id")
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// requireAdmin guards the back office. JSON APIs get 401, pages are
// redirected to the login form.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := a.Sessions.CurrentAdmin(c); ok {
			return next(c)
		}
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			return c.JSON(http.StatusUnauthorized, errorBody("Unauthorized"))
		}
		return c.Redirect(http.StatusSeeOther, "/admin/login/")
	}
}

// registerAdmin validates the credentials and creates an unverified admin
// holding a fresh verification token. Signing up again before confirming
// replaces the password and token of the pending account.
func (a *App) registerAdmin(ctx context.Context, email, password string) (Admin, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return Admin{}, ErrInvalidEmail
	}
	if !strings.HasSuffix(email, "@"+a.Config.AdminEmailDomain) {
		return Admin{}, ErrEmailDomain
	}
	if len(password) < minPasswordLen {
		return Admin{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Admin{}, fmt.Errorf("hash password: %w", err)
	}
	admin, err := a.Store.CreateAdmin(ctx, email, string(hash), uuid.NewString())
	if errors.Is(err, ErrDuplicate) {
		return a.Store.ResetUnverifiedAdmin(ctx, email, string(hash), uuid.NewString())
	}
	return admin, err
}

// authenticate checks email and password against the stored hash.
func (a *App) authenticate(ctx context.Context, email, password string) (Admin, error) {
	admin, err := a.Store.GetAdminByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return Admin{}, ErrBadCredentials
	}
	if err != nil {
		return Admin{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return Admin{}, ErrBadCredentials
	}
	if !admin.Verified {
		return Admin{}, ErrNotVerified
	}
	return admin, nil
}

func (a *App) sendVerification(ctx context.Context, admin Admin) error {
	link := BuildURL(a.Config.URL, "admin", "verify") + "?token=" + admin.VerifyToken
	return a.transport.Send(ctx, mailer.Email{
		From:    a.Config.FromEmail,
		To:      admin.Email,
		Subject: "Confirm your " + a.Config.Name + " admin account",
		HTML:    `<p>Confirm your account by opening <a href="` + link + `">this link</a>.</p>`,
		Text:    "Confirm your account: " + link,
	})
}

func (a *App) handleLoginPage(c echo.Context) error {
	if _, ok := a.Sessions.CurrentAdmin(c); ok {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return Render(c, a.Views.AdminLogin(a.authData(c, "", c.QueryParam("msg"))))
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	email := c.FormValue("email")
	admin, err := a.authenticate(c.Request().Context(), email, c.FormValue("password"))
	switch {
	case errors.Is(err, ErrBadCredentials), errors.Is(err, ErrNotVerified):
		a.loginLimiter.Record(ip)
		data := a.authData(c, err.Error(), "")
		data.Email = email
		return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(data))
	case err != nil:
		return err
	}
	if err := a.Sessions.SignIn(c, admin); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleLogout(c echo.Context) error {
	if err := a.Sessions.SignOut(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/login/")
}

func (a *App) handleSignupPage(c echo.Context) error {
	return Render(c, a.Views.AdminSignup(a.authData(c, "", "")))
}

func (a *App) handleSignup(c echo.Context) error {
	if !a.signupLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many attempts. Try again later.")
	}
	ctx := c.Request().Context()
	email := c.FormValue("email")
	admin, err := a.registerAdmin(ctx, email, c.FormValue("password"))
	if err != nil {
		msg := err.Error()
		switch {
		case errors.Is(err, ErrEmailDomain):
			msg = "Only @" + a.Config.AdminEmailDomain + " addresses can sign up"
		case errors.Is(err, ErrDuplicate):
			msg = "An account with this email already exists"
		case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrWeakPassword):
		default:
			return err
		}
		data := a.authData(c, msg, "")
		data.Email = email
		return RenderStatus(c, http.StatusBadRequest, a.Views.AdminSignup(data))
	}
	if err := a.sendVerification(ctx, admin); err != nil {
		a.logger.ErrorContext(ctx, "sending verification email", "email", admin.Email, "error", err)
	}
	return Render(c, a.Views.AdminSignup(a.authData(c, "", "Check your inbox for a confirmation link.")))
}

func (a *App) handleVerify(c echo.Context) error {
	_, err := a.Store.VerifyAdmin(c.Request().Context(), c.QueryParam("token"))
	if errors.Is(err, ErrNotFound) {
		return c.Redirect(http.StatusSeeOther, "/admin/login/?msg=Invalid+or+expired+link")
	}
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/login/?msg=Account+confirmed.+You+can+sign+in+now")
}

func (a *App) authData(c echo.Context, errMsg, notice string) AuthData {
	return AuthData{
		Site:      a.Config,
		Error:     errMsg,
		Notice:    notice,
		Domain:    a.Config.AdminEmailDomain,
		CSRFToken: CsrfToken(c),
	}
}
