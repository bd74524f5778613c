package http

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/dashboard"
	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Dashboard is the application surface the API drives. *dashboard.Service
// implements it.
type Dashboard interface {
	DataSources() []domain.DataSource
	DataSource(id string) (domain.DataSource, error)
	AddRule(ctx context.Context, dataSourceID string, rule domain.ColorRule) (domain.ColorRule, error)
	RemoveRule(ctx context.Context, dataSourceID, ruleID string) error

	Polygons() []domain.Polygon
	Polygon(id string) (domain.Polygon, error)
	UpdatePolygon(ctx context.Context, id string, patch dashboard.PolygonPatch) (domain.Polygon, error)
	DeletePolygon(ctx context.Context, id string) error
	RefreshPolygons(ctx context.Context) ([]domain.Polygon, error)
	Select(id string) error
	Selected() string

	Drawing() dashboard.DrawingStatus
	StartDrawing(dataSourceID string) error
	CancelDrawing() bool
	Click(ctx context.Context, c domain.Coordinate) (domain.Polygon, bool)

	Timeline() domain.TimelineState
	SetTimelineMode(m domain.TimeMode) (domain.TimelineState, error)
	SetHour(h int) (domain.TimelineState, error)
	SetRangeStart(v int) (domain.TimelineState, bool)
	SetRangeEnd(v int) (domain.TimelineState, bool)
	ApplyPreset(p domain.Preset) (domain.TimelineState, error)

	WeatherSummary(ctx context.Context, lat, lng float64) (dashboard.WeatherSummary, error)
}

// Handler serves the sidebar and timeline JSON API.
type Handler struct {
	svc      Dashboard
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(svc Dashboard, logger *slog.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Handler{svc: svc, validate: v, logger: logger}
}

// RegisterRoutes mounts the API on the provided chi.Router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/datasources", func(r chi.Router) {
		r.Get("/", h.listDataSources)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getDataSource)
			r.Post("/rules", h.addRule)
			r.Delete("/rules/{ruleID}", h.removeRule)
		})
	})

	r.Route("/polygons", func(r chi.Router) {
		r.Get("/", h.listPolygons)
		r.Post("/refresh", h.refreshPolygons)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getPolygon)
			r.Patch("/", h.updatePolygon)
			r.Delete("/", h.deletePolygon)
		})
	})

	r.Get("/selection", h.getSelection)
	r.Put("/selection", h.putSelection)

	r.Route("/drawing", func(r chi.Router) {
		r.Get("/", h.getDrawing)
		r.Post("/start", h.startDrawing)
		r.Post("/cancel", h.cancelDrawing)
		r.Post("/click", h.click)
	})

	r.Route("/timeline", func(r chi.Router) {
		r.Get("/", h.getTimeline)
		r.Put("/mode", h.setMode)
		r.Put("/hour", h.setHour)
		r.Put("/range/start", h.setRangeStart)
		r.Put("/range/end", h.setRangeEnd)
		r.Post("/presets/{preset}", h.applyPreset)
	})

	r.Get("/weather", h.weather)
}

// --- request and response bodies ---

type ruleRequest struct {
	Color    string   `json:"color" validate:"required,hexcolor"`
	Operator string   `json:"operator" validate:"required"`
	Value    *float64 `json:"value" validate:"required"`
}

type polygonPatchRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	DataSourceID *string `json:"dataSourceId" validate:"omitempty,min=1"`
}

type selectionBody struct {
	PolygonID string `json:"polygonId"`
}

type startDrawingRequest struct {
	DataSourceID string `json:"dataSourceId"`
}

type clickRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

type clickResponse struct {
	Completed bool                    `json:"completed"`
	Polygon   *domain.Polygon         `json:"polygon,omitempty"`
	Drawing   dashboard.DrawingStatus `json:"drawing"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=single range"`
}

type hourRequest struct {
	Hour *int `json:"hour" validate:"required"`
}

type handleRequest struct {
	Value *int `json:"value" validate:"required"`
}

type handleResponse struct {
	Applied  bool                 `json:"applied"`
	Timeline domain.TimelineState `json:"timeline"`
}

// --- data sources ---

func (h *Handler) listDataSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.DataSources())
}

func (h *Handler) getDataSource(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.DataSource(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) addRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := h.decodeAndValidate(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	op, err := domain.ParseOperator(req.Operator)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rule, err := h.svc.AddRule(r.Context(), chi.URLParam(r, "id"), domain.ColorRule{
		Color:    req.Color,
		Operator: op,
		Value:    *req.Value,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *Handler) removeRule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveRule(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "ruleID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- polygons ---

func (h *Handler) listPolygons(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Polygons())
}

func (h *Handler) refreshPolygons(w http.ResponseWriter, r *http.Request) {
	polys, err := h.svc.RefreshPolygons(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, polys)
}

func (h *Handler) getPolygon(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Polygon(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) updatePolygon(w http.ResponseWriter, r *http.Request) {
	var req polygonPatchRequest
	if err := h.decodeAndValidate(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			h.fail(w, r, badRequest(codeValidationFailed, "field name must not be blank"))
			return
		}
		req.Name = &trimmed
	}

	p, err := h.svc.UpdatePolygon(r.Context(), chi.URLParam(r, "id"), dashboard.PolygonPatch{
		Name:         req.Name,
		DataSourceID: req.DataSourceID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deletePolygon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePolygon(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, selectionBody{PolygonID: h.svc.Selected()})
}

func (h *Handler) putSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionBody
	if err := h.decodeAndValidate(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Select(req.PolygonID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionBody{PolygonID: h.svc.Selected()})
}

// --- drawing ---

func (h *Handler) getDrawing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Drawing())
}

func (h *Handler) startDrawing(w http.ResponseWriter, r *http.Request) {
	var req startDrawingRequest
	if err := h.decodeAndValidate(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.StartDrawing(req.DataSourceID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Drawing())
}

func (h *Handler) cancelDrawing(w http.ResponseWriter, _ *http.Request) {
	h.svc.CancelDrawing()
	writeJSON(w, http.StatusOK, h.svc.Drawing())
}

func (h *Handler) click(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := h.decodeAndValidate(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	resp := clickResponse{}
	if p, ok := h.svc.Click(r.Context(), domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng}); ok {
		resp.Completed = true
		resp.Polygon = &p
	}
	resp.Drawing = h.svc.Drawing()
	writeJSON(w, http.StatusOK, resp)
}

// --- timeline ---

func (h *Handler) getTimeline(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Timeline())
}

func (h *Handler) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := h.decodeAndValidate(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.svc.SetTimelineMode(domain.TimeMode(req.Mode))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) setHour(w http.ResponseWriter, r *http.Request) {
	var req hourRequest
	if err := h.decodeAndValidate(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.svc.SetHour(*req.Hour)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) setRangeStart(w http.ResponseWriter, r *http.Request) {
	h.moveHandle(w, r, h.svc.SetRangeStart)
}

func (h *Handler) setRangeEnd(w http.ResponseWriter, r *http.Request) {
	h.moveHandle(w, r, h.svc.SetRangeEnd)
}

// moveHandle answers 200 even for a rejected move; the body reports whether
// it was applied.
func (h *Handler) moveHandle(w http.ResponseWriter, r *http.Request, move func(int) (domain.TimelineState, bool)) {
	var req handleRequest
	if err := h.decodeAndValidate(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	st, applied := move(*req.Value)
	writeJSON(w, http.StatusOK, handleResponse{Applied: applied, Timeline: st})
}

func (h *Handler) applyPreset(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ApplyPreset(domain.Preset(chi.URLParam(r, "preset")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- weather ---

func (h *Handler) weather(w http.ResponseWriter, r *http.Request) {
	lat, err := h.coordinateParam(r, "lat", "latitude")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	lon, err := h.coordinateParam(r, "lon", "longitude")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	summary, err := h.svc.WeatherSummary(r.Context(), lat, lon)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) coordinateParam(r *http.Request, name, tag string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, badRequest(codeValidationFailed, "query parameter %s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest(codeValidationFailed, "query parameter %s must be a number", name)
	}
	if err := h.validate.Var(v, tag); err != nil {
		return 0, badRequest(codeValidationFailed, "query parameter %s is not a valid %s", name, tag)
	}
	return v, nil
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	if err := decodeJSON(w, r, dst, allowEmpty); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// fail writes the error envelope and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _, _ := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("api request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeError(w, err)
}
