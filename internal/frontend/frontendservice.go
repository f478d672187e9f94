package frontend

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jo-hoe/signtracker/internal/core"
	"github.com/jo-hoe/signtracker/internal/inspection"
	"github.com/jo-hoe/signtracker/internal/journal"
	"github.com/jo-hoe/signtracker/internal/scanner"
	"github.com/jo-hoe/signtracker/internal/session"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName  = "index.html"
	SessionCookie = "signtracker_session"

	viewsPattern = "views/*.html"
	mimePNG      = "image/png"
	journalLimit = 20
)

//go:embed views
var viewsFS embed.FS

// InspectionService is what the page needs from the core service.
type InspectionService interface {
	StartSession(ctx context.Context, token string) (*inspection.Session, error)
	EndSession(ctx context.Context, id string) error
	GetSession(ctx context.Context, id string) (*inspection.Session, error)
	Scan(ctx context.Context, id, code string) (*inspection.Prompt, error)
	Confirm(ctx context.Context, id, promptID, comment string) (inspection.LogEntry, error)
	Cancel(ctx context.Context, id, promptID string) error
	RecentActivity(ctx context.Context, limit int) ([]journal.Entry, error)
	SignHistory(ctx context.Context, signNo string) ([]journal.Entry, error)
	Symbologies() []scanner.Symbology
}

type Template struct {
	templates *template.Template
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

type FrontendService struct {
	coreService InspectionService
	config      *core.ServiceConfig
	icons       *iconRenderer
}

type sessionView struct {
	ReferenceCount int
	LogCount       int
}

type indexView struct {
	HasSession bool
	Session    sessionView
	Pending    *inspection.Prompt
	Readers    []scanner.Symbology
}

type startSessionRequest struct {
	Token string `form:"token" validate:"required"`
}

type scanRequest struct {
	Code string `form:"code" validate:"max=128"`
}

type promptRequest struct {
	ID      string `param:"id" validate:"required"`
	Comment string `form:"comment" validate:"max=500"`
}

// trigger becomes the HX-Trigger response header; the page maps each key to an
// event (cue, notify, scan-start, scan-stop, journal-changed).
type trigger map[string]any

func NewFrontendService(config *core.ServiceConfig, coreService InspectionService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
		icons:       newIconRenderer(mustReadView("views/icon.svg")),
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = &Template{
		templates: template.Must(template.New("").ParseFS(viewsFS, viewsPattern)),
	}

	e.GET("/", service.rootRedirectHandler)
	e.GET("/"+MainPageName, service.indexHandler)
	e.GET("/probe", service.probeHandler)

	e.POST("/htmx/session", service.htmxStartSessionHandler)
	e.DELETE("/htmx/session", service.htmxEndSessionHandler)
	e.POST("/htmx/scan", service.htmxScanHandler)
	e.POST("/htmx/prompt/:id/confirm", service.htmxConfirmHandler)
	e.POST("/htmx/prompt/:id/cancel", service.htmxCancelHandler)
	e.GET("/htmx/journal", service.htmxJournalHandler)
	e.GET("/htmx/sign/:signNo/history", service.htmxSignHistoryHandler)

	e.GET("/icon.svg", service.iconHandler)
	e.GET("/icon.png", service.iconPNGHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	view := indexView{Readers: service.coreService.Symbologies()}

	if s, ok := service.currentSession(ctx); ok {
		view.HasSession = true
		view.Session = sessionView{ReferenceCount: len(s.Reference), LogCount: len(s.Log)}
		view.Pending = s.Pending
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, MainPageName, view)
}

func (service *FrontendService) probeHandler(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "ok")
}

func (service *FrontendService) htmxStartSessionHandler(ctx echo.Context) error {
	var req startSessionRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid request")
	}
	if err := ctx.Validate(&req); err != nil {
		return ctx.Render(http.StatusOK, "start", "An access token is required.")
	}

	s, err := service.coreService.StartSession(ctx.Request().Context(), req.Token)
	if err != nil {
		slog.Error("htmxStartSessionHandler: failed to start session", "error", err)
		service.setTrigger(ctx, trigger{"cue": string(inspection.CueError)})
		return ctx.Render(http.StatusOK, "start", "Failed to load the sign lists. Check the connection and try again.")
	}

	ctx.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(service.config.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	service.setTrigger(ctx, trigger{"scan-start": true, "journal-changed": true})
	return ctx.Render(http.StatusOK, "session", sessionView{ReferenceCount: len(s.Reference), LogCount: len(s.Log)})
}

func (service *FrontendService) htmxEndSessionHandler(ctx echo.Context) error {
	if id, ok := sessionID(ctx); ok {
		if err := service.coreService.EndSession(ctx.Request().Context(), id); err != nil {
			slog.Warn("htmxEndSessionHandler: failed to end session", "session_id", id, "error", err)
		}
	}

	ctx.SetCookie(&http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	service.setTrigger(ctx, trigger{"scan-stop": true})
	return ctx.Render(http.StatusOK, "start", "")
}

func (service *FrontendService) htmxScanHandler(ctx echo.Context) error {
	id, ok := sessionID(ctx)
	if !ok {
		return service.sessionExpired(ctx)
	}
	var req scanRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid request")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	prompt, err := service.coreService.Scan(ctx.Request().Context(), id, req.Code)
	switch {
	case err == nil:
		return ctx.Render(http.StatusOK, "dialog", prompt)
	case errors.Is(err, inspection.ErrNotFound):
		return service.rejectScan(ctx, inspection.NotFoundMessage(req.Code))
	case errors.Is(err, inspection.ErrDuplicateBlocked):
		return service.rejectScan(ctx, inspection.BlockedMessage(req.Code))
	case errors.Is(err, inspection.ErrPromptPending):
		slog.Warn("htmxScanHandler: scan while a prompt is open", "session_id", id, "code", req.Code)
		return ctx.String(http.StatusConflict, "A confirmation is already open")
	case errors.Is(err, session.ErrNotFound):
		return service.sessionExpired(ctx)
	default:
		slog.Error("htmxScanHandler: failed to handle scan",
			"status", http.StatusInternalServerError, "session_id", id, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to handle scan")
	}
}

func (service *FrontendService) htmxConfirmHandler(ctx echo.Context) error {
	id, ok := sessionID(ctx)
	if !ok {
		return service.sessionExpired(ctx)
	}
	var req promptRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid request")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	entry, err := service.coreService.Confirm(ctx.Request().Context(), id, req.ID, req.Comment)
	switch {
	case err == nil:
		service.setTrigger(ctx, trigger{
			"cue":             string(inspection.CueSuccess),
			"notify":          inspection.LoggedMessage(entry.SignNo),
			"scan-start":      true,
			"journal-changed": true,
		})
	case errors.Is(err, inspection.ErrNoPrompt):
		service.setTrigger(ctx, trigger{"scan-start": true})
	case errors.Is(err, session.ErrNotFound):
		return service.sessionExpired(ctx)
	default:
		slog.Error("htmxConfirmHandler: failed to persist inspection",
			"session_id", id, "prompt_id", req.ID, "error", err)
		service.setTrigger(ctx, trigger{
			"cue":             string(inspection.CueError),
			"notify":          inspection.MessagePersistFailed,
			"scan-start":      true,
			"journal-changed": true,
		})
	}
	return ctx.Render(http.StatusOK, "dialog", nil)
}

func (service *FrontendService) htmxCancelHandler(ctx echo.Context) error {
	id, ok := sessionID(ctx)
	if !ok {
		return service.sessionExpired(ctx)
	}
	var req promptRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid request")
	}

	err := service.coreService.Cancel(ctx.Request().Context(), id, req.ID)
	if errors.Is(err, session.ErrNotFound) {
		return service.sessionExpired(ctx)
	}
	if err != nil && !errors.Is(err, inspection.ErrNoPrompt) {
		slog.Error("htmxCancelHandler: failed to cancel prompt", "session_id", id, "error", err)
	}
	service.setTrigger(ctx, trigger{"scan-start": true, "journal-changed": true})
	return ctx.Render(http.StatusOK, "dialog", nil)
}

func (service *FrontendService) htmxJournalHandler(ctx echo.Context) error {
	entries, err := service.coreService.RecentActivity(ctx.Request().Context(), journalLimit)
	if err != nil {
		slog.Error("htmxJournalHandler: failed to list journal",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list recent activity")
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "journal", entries)
}

// htmxSignHistoryHandler lists earlier scans of the sign shown in the dialog.
func (service *FrontendService) htmxSignHistoryHandler(ctx echo.Context) error {
	signNo := ctx.Param("signNo")
	entries, err := service.coreService.SignHistory(ctx.Request().Context(), signNo)
	if err != nil {
		slog.Error("htmxSignHistoryHandler: failed to list sign history",
			"status", http.StatusInternalServerError, "sign_no", signNo, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list sign history")
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "history", entries)
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := viewsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) iconPNGHandler(ctx echo.Context) error {
	size := service.config.IconSizes[0]
	if raw := ctx.QueryParam("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || !service.allowedIconSize(parsed) {
			return ctx.String(http.StatusBadRequest, "Unsupported icon size")
		}
		size = parsed
	}

	data, err := service.icons.PNG(size)
	if err != nil {
		slog.Error("iconPNGHandler: failed to render icon", "size", size, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to render icon")
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, data)
}

func (service *FrontendService) allowedIconSize(size int) bool {
	for _, s := range service.config.IconSizes {
		if s == size {
			return true
		}
	}
	return false
}

func (service *FrontendService) rejectScan(ctx echo.Context, message string) error {
	service.setTrigger(ctx, trigger{
		"cue":             string(inspection.CueError),
		"notify":          message,
		"scan-start":      true,
		"journal-changed": true,
	})
	return ctx.Render(http.StatusOK, "dialog", nil)
}

func (service *FrontendService) sessionExpired(ctx echo.Context) error {
	service.setTrigger(ctx, trigger{
		"cue":       string(inspection.CueError),
		"notify":    "Your session has ended. Reload the page and start again.",
		"scan-stop": true,
	})
	return ctx.Render(http.StatusOK, "dialog", nil)
}

func (service *FrontendService) currentSession(ctx echo.Context) (*inspection.Session, bool) {
	id, ok := sessionID(ctx)
	if !ok {
		return nil, false
	}
	s, err := service.coreService.GetSession(ctx.Request().Context(), id)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Warn("currentSession: failed to read session", "session_id", id, "error", err)
		}
		return nil, false
	}
	return s, true
}

func (service *FrontendService) setTrigger(ctx echo.Context, t trigger) {
	data, err := json.Marshal(t)
	if err != nil {
		slog.Error("setTrigger: failed to encode trigger", "error", err)
		return
	}
	ctx.Response().Header().Set("HX-Trigger", string(data))
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func sessionID(ctx echo.Context) (string, bool) {
	cookie, err := ctx.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func mustReadView(name string) []byte {
	data, err := viewsFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return data
}
