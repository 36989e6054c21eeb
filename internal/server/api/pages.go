package api

import (
	"errors"
	"net/http"

	"vidadmin/internal/server/auth"
	"vidadmin/internal/server/service"
	"vidadmin/internal/server/web"

	"github.com/labstack/echo/v4"
)

// HandleLoginPage handles GET /login.
func (h *Handler) HandleLoginPage(c echo.Context) error {
	page := web.LoginPage{}
	switch c.QueryParam("error") {
	case "invalid":
		page.Error = "Invalid email or password"
	case "unavailable":
		page.Error = "Sign-in is temporarily unavailable, try again later"
	}
	return c.Render(http.StatusOK, "login.html", page)
}

// HandleLoginForm handles POST /login from the login page.
func (h *Handler) HandleLoginForm(c echo.Context) error {
	result, err := h.accounts.Login(c.Request().Context(), c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.Redirect(http.StatusSeeOther, "/login?error=invalid")
		}
		return c.Redirect(http.StatusSeeOther, "/login?error=unavailable")
	}

	c.SetCookie(auth.NewCookie(result.Token, result.ExpiresAt, h.cfg.CookieSecure))
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// HandleLogoutForm handles POST /logout from the dashboard header.
func (h *Handler) HandleLogoutForm(c echo.Context) error {
	c.SetCookie(auth.ClearCookie(h.cfg.CookieSecure))
	return c.Redirect(http.StatusSeeOther, "/login")
}

// HandleDashboard handles GET /dashboard. PageGuard has already ensured a session.
func (h *Handler) HandleDashboard(c echo.Context) error {
	claims := sessionFrom(c)
	if claims == nil {
		return c.Redirect(http.StatusFound, "/login")
	}

	folders := make([]string, 0, len(service.Folders))
	for _, f := range service.Folders {
		folders = append(folders, string(f))
	}

	return c.Render(http.StatusOK, "dashboard.html", web.DashboardPage{
		Email:   claims.Email,
		Name:    claims.Name,
		Folders: folders,
		Backend: h.cfg.StorageBackend,
	})
}
