package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"vidadmin/internal/server/auth"
	"vidadmin/internal/server/config"
	"vidadmin/internal/server/database"
	"vidadmin/internal/server/service"
	"vidadmin/internal/server/storage"

	"github.com/labstack/echo/v4"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// mediaStore is a backend whose objects this server serves itself.
type mediaStore interface {
	PublicRead() bool
	VerifyToken(key, token string) bool
	GetPath(key string) (string, error)
}

// Handler contains the HTTP handlers for the admin panel.
type Handler struct {
	videos   *service.VideoService
	accounts *service.AuthService
	users    database.UserStore
	storage  *storage.Lazy
	cfg      *config.Config
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(videos *service.VideoService, accounts *service.AuthService, users database.UserStore, lazy *storage.Lazy, cfg *config.Config) *Handler {
	return &Handler{
		videos:   videos,
		accounts: accounts,
		users:    users,
		storage:  lazy,
		cfg:      cfg,
	}
}

// HandleUpload handles POST /api/upload.
// Accepts a multipart form with a "file" field and a "folder" field.
func (h *Handler) HandleUpload(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.cfg.MaxUploadSize+multipartMemory)

	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return mapServiceError(c, service.ErrFileTooLarge)
		}
		return writeError(c, http.StatusBadRequest, CodeValidation, "request must be multipart/form-data")
	}

	folder := c.FormValue("folder")
	if _, err := service.ParseFolder(folder); err != nil {
		return mapServiceError(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return writeError(c, http.StatusBadRequest, CodeValidation, "file is required (use form field 'file')")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return mapServiceError(c, fmt.Errorf("failed to read uploaded file: %w", err))
	}
	defer src.Close()

	result, err := h.videos.Upload(
		req.Context(),
		folder,
		fileHeader.Filename,
		fileHeader.Header.Get(echo.HeaderContentType),
		src,
		fileHeader.Size,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// HandleListVideos handles GET /api/videos.
func (h *Handler) HandleListVideos(c echo.Context) error {
	videos, err := h.videos.List(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"videos": videos})
}

type deleteRequest struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

// HandleDeleteVideo handles DELETE /api/videos with a JSON body {name, folder}.
func (h *Handler) HandleDeleteVideo(c echo.Context) error {
	var req deleteRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, CodeValidation, "invalid JSON body")
	}

	deleted, err := h.videos.Delete(c.Request().Context(), req.Folder, req.Name)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"deleted": deleted,
	})
}

// HandlePublicURL handles GET /api/videos/public-url?folder=&name=.
func (h *Handler) HandlePublicURL(c echo.Context) error {
	u, err := h.videos.PublicURL(c.Request().Context(), c.QueryParam("folder"), c.QueryParam("name"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": u})
}

// HandleConfigStatus handles GET /api/config/status.
func (h *Handler) HandleConfigStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"backend":   h.cfg.StorageBackend,
		"valid":     len(h.cfg.MissingStorageVars()) == 0,
		"variables": h.cfg.Status(),
	})
}

// HandleSeed handles GET /api/seed.
func (h *Handler) HandleSeed(c echo.Context) error {
	created, err := h.accounts.Seed(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	if !created {
		return c.JSON(http.StatusOK, echo.Map{"message": "Admin user already exists"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Admin user created successfully"})
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// HandleLogin handles POST /api/auth/login. Sets the session cookie and also
// returns the token for bearer use.
func (h *Handler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, CodeValidation, "invalid request body")
	}

	result, err := h.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	c.SetCookie(auth.NewCookie(result.Token, result.ExpiresAt, h.cfg.CookieSecure))
	return c.JSON(http.StatusOK, result)
}

// HandleLogout handles POST /api/auth/logout.
func (h *Handler) HandleLogout(c echo.Context) error {
	c.SetCookie(auth.ClearCookie(h.cfg.CookieSecure))
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// HandleSession handles GET /api/auth/session.
func (h *Handler) HandleSession(c echo.Context) error {
	claims := sessionFrom(c)
	return c.JSON(http.StatusOK, echo.Map{
		"user": service.UserInfo{
			ID:    claims.Subject,
			Name:  claims.Name,
			Email: claims.Email,
			Role:  claims.Role,
		},
		"expiresAt": claims.ExpiresAt.Time,
	})
}

// HandleHealth handles GET /health.
// Reports credential store connectivity and whether storage has been initialized.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if err := h.users.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	storageStatus := "pending"
	if h.storage.Initialized() {
		storageStatus = "initialized"
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
		"storage":  storageStatus,
	})
}

// HandleMedia handles GET /media/* for the filesystem backend. Requires a
// signed URL token unless public reads are enabled.
func (h *Handler) HandleMedia(c echo.Context) error {
	key, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, CodeValidation, "invalid object path")
	}

	backend, err := h.storage.Backend(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	local, ok := backend.(mediaStore)
	if !ok {
		return writeError(c, http.StatusNotFound, CodeNotFound, "not found")
	}

	if !local.PublicRead() && !local.VerifyToken(key, c.QueryParam("token")) {
		return writeError(c, http.StatusForbidden, CodeForbidden, "missing or invalid token")
	}

	p, err := local.GetPath(key)
	if err != nil {
		return writeError(c, http.StatusNotFound, CodeNotFound, "not found")
	}
	return c.File(p)
}
