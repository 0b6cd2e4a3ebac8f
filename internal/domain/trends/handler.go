package trends

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/outcomes/internal/domain/assessment"
	"github.com/ehr/outcomes/internal/platform/auth"
)

// maxWindowDays bounds the window a caller may request.
const maxWindowDays = 365

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("clinician", "physician", "nurse", "patient"))
	g.GET("/metrics/definitions", h.ListDefinitions)
	g.POST("/metric-samples", h.RecordSample)
	g.GET("/metric-samples", h.ListSamples)
	g.POST("/trends/analyze", h.AnalyzeSamples)
	g.POST("/insights", h.GenerateInsights)
	g.GET("/subjects/:id/trends", h.GetSubjectTrends)
}

type sampleRequest struct {
	SubjectID  string    `json:"subject_id"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

type analyzeRequest struct {
	MetricName      string         `json:"metric_name"`
	WindowDays      int            `json:"window_days"`
	DeadbandPercent *float64       `json:"deadband_percent,omitempty"`
	Now             time.Time      `json:"now"`
	Samples         []MetricSample `json:"samples"`
}

type insightsRequest struct {
	Trends map[string]TrendResult `json:"trends"`
}

func (h *Handler) ListDefinitions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Registry().List())
}

// -- Sample Handlers --

func (h *Handler) RecordSample(c echo.Context) error {
	var req sampleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	subjectID, err := resolveSubject(c, req.SubjectID)
	if err != nil {
		return err
	}
	s := &MetricSample{SubjectID: subjectID, MetricName: req.MetricName, Value: req.Value, RecordedAt: req.RecordedAt}
	if err := h.svc.RecordSample(c.Request().Context(), s); err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) ListSamples(c echo.Context) error {
	subjectID, err := resolveSubject(c, c.QueryParam("subject_id"))
	if err != nil {
		return err
	}
	var since time.Time
	if v := c.QueryParam("since"); v != "" {
		since, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be an RFC 3339 timestamp")
		}
	}
	items, err := h.svc.ListSamples(c.Request().Context(), subjectID, c.QueryParam("metric"), since)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

// -- Analysis Handlers --

// AnalyzeSamples runs the analyzer over the posted samples without reading
// or writing storage. A deadband in the request overrides the metric's own.
func (h *Handler) AnalyzeSamples(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.WindowDays > maxWindowDays {
		return echo.NewHTTPError(http.StatusBadRequest, "window_days is too large")
	}
	def, err := h.svc.Registry().Get(req.MetricName)
	if err != nil {
		return errorToHTTP(err)
	}
	if req.DeadbandPercent != nil {
		def.DeadbandPercent = *req.DeadbandPercent
	}
	windowDays := h.svc.window(req.WindowDays)
	now := h.svc.asOf(req.Now)
	return c.JSON(http.StatusOK, AnalyzeMetric(def, req.Samples, windowDays, now))
}

func (h *Handler) GenerateInsights(c echo.Context) error {
	var req insightsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for name, t := range req.Trends {
		if t.MetricName == "" {
			t.MetricName = name
			req.Trends[name] = t
		}
	}
	return c.JSON(http.StatusOK, h.svc.Insights(req.Trends))
}

func (h *Handler) GetSubjectTrends(c echo.Context) error {
	subjectID, err := resolveSubject(c, c.Param("id"))
	if err != nil {
		return err
	}
	windowDays := 0
	if v := c.QueryParam("window_days"); v != "" {
		windowDays, err = strconv.Atoi(v)
		if err != nil || windowDays < 1 || windowDays > maxWindowDays {
			return echo.NewHTTPError(http.StatusBadRequest, "window_days must be between 1 and 365")
		}
	}
	var asOf time.Time
	if v := c.QueryParam("as_of"); v != "" {
		asOf, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "as_of must be an RFC 3339 timestamp")
		}
	}
	a, err := h.svc.AnalyzeSubject(c.Request().Context(), subjectID, windowDays, asOf)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

// resolveSubject parses raw and checks the caller may act on that subject.
// Patients that omit it get their own subject.
func resolveSubject(c echo.Context, raw string) (uuid.UUID, error) {
	ctx := c.Request().Context()
	role := assessment.RoleFor(auth.RolesFromContext(ctx))
	caller := auth.SubjectIDFromContext(ctx)
	if raw == "" && role == assessment.RolePatient {
		raw = caller
	}
	if raw == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "subject_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid subject_id")
	}
	if !assessment.CanAccessSubject(role, caller, id) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "access to this subject is not permitted")
	}
	return id, nil
}

func errorToHTTP(err error) error {
	switch {
	case errors.Is(err, ErrUnknownMetric):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidSample):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
