package assessment

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/outcomes/internal/platform/auth"
	"github.com/ehr/outcomes/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read and submit: clinicians and the subject themselves
	readGroup := api.Group("", auth.RequireRole("clinician", "physician", "nurse", "patient"))
	readGroup.GET("/instruments", h.ListInstruments)
	readGroup.GET("/instruments/:id", h.GetInstrument)
	readGroup.POST("/instruments/:id/score", h.ScoreInstrument)
	readGroup.POST("/responses", h.SubmitResponse)
	readGroup.GET("/responses", h.ListResponses)
	readGroup.GET("/responses/:id", h.GetResponse)
	readGroup.GET("/subjects/:id/assignments", h.GetAssignments)

	// Assignment management: clinicians only
	manageGroup := api.Group("", auth.RequireRole("clinician", "physician", "nurse"))
	manageGroup.PUT("/subjects/:id/assignments", h.SetAssignments)
}

type scoreRequest struct {
	Answers map[string]int `json:"answers"`
}

type submitRequest struct {
	SubjectID    string         `json:"subject_id"`
	InstrumentID string         `json:"instrument_id"`
	Answers      map[string]int `json:"answers"`
}

type assignmentsRequest struct {
	InstrumentIDs []string `json:"instrument_ids"`
}

// -- Instrument Handlers --

func (h *Handler) ListInstruments(c echo.Context) error {
	ctx := c.Request().Context()
	subjectID, err := resolveSubject(c, c.QueryParam("subject_id"), false)
	if err != nil {
		return err
	}
	items, err := h.svc.ListInstruments(ctx, auth.RolesFromContext(ctx), subjectID)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetInstrument(c echo.Context) error {
	inst, err := h.svc.GetInstrument(c.Param("id"))
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// ScoreInstrument evaluates answers without storing a response.
func (h *Handler) ScoreInstrument(c echo.Context) error {
	var req scoreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Score(c.Param("id"), req.Answers)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Response Handlers --

func (h *Handler) SubmitResponse(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	subjectID, err := resolveSubject(c, req.SubjectID, true)
	if err != nil {
		return err
	}
	resp, err := h.svc.SubmitResponse(c.Request().Context(), subjectID, req.InstrumentID, req.Answers)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GetResponse(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	resp, err := h.svc.GetResponse(c.Request().Context(), id)
	if err != nil {
		return errorToHTTP(err)
	}
	if !canAccess(c, resp.SubjectID) {
		// Same answer as a missing row so ids cannot be probed.
		return echo.NewHTTPError(http.StatusNotFound, "response not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListResponses(c echo.Context) error {
	pg := pagination.FromContext(c)
	subjectID, err := resolveSubject(c, c.QueryParam("subject_id"), true)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListResponses(c.Request().Context(), subjectID, c.QueryParam("instrument_id"), pg.Limit, pg.Offset)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Assignment Handlers --

func (h *Handler) GetAssignments(c echo.Context) error {
	subjectID, err := resolveSubject(c, c.Param("id"), true)
	if err != nil {
		return err
	}
	items, err := h.svc.GetAssignments(c.Request().Context(), subjectID)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SetAssignments(c echo.Context) error {
	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid subject id")
	}
	var req assignmentsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	items, err := h.svc.SetAssignments(ctx, auth.RolesFromContext(ctx), auth.UserIDFromContext(ctx), subjectID, req.InstrumentIDs)
	if err != nil {
		return errorToHTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

// resolveSubject parses raw as a subject id and checks the caller may act on
// it. Patients that omit the id get their own subject. When required is false
// a clinician may omit it and receives uuid.Nil.
func resolveSubject(c echo.Context, raw string, required bool) (uuid.UUID, error) {
	ctx := c.Request().Context()
	role := RoleFor(auth.RolesFromContext(ctx))
	if raw == "" && role == RolePatient {
		raw = auth.SubjectIDFromContext(ctx)
	}
	if raw == "" {
		if required {
			return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "subject_id is required")
		}
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid subject_id")
	}
	if !canAccess(c, id) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "access to this subject is not permitted")
	}
	return id, nil
}

func canAccess(c echo.Context, subjectID uuid.UUID) bool {
	ctx := c.Request().Context()
	return CanAccessSubject(RoleFor(auth.RolesFromContext(ctx)), auth.SubjectIDFromContext(ctx), subjectID)
}

// errorToHTTP maps service errors onto HTTP errors. Validation failures carry
// the offending question ids so clients can highlight them.
func errorToHTTP(err error) error {
	var incomplete *IncompleteResponseError
	var invalid *InvalidAnswerError
	switch {
	case errors.As(err, &incomplete):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"message":       err.Error(),
			"instrument_id": incomplete.InstrumentID,
			"missing":       incomplete.Missing,
		})
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"message":       err.Error(),
			"instrument_id": invalid.InstrumentID,
			"question_id":   invalid.QuestionID,
			"value":         invalid.Value,
		})
	case errors.Is(err, ErrInstrumentNotFound), errors.Is(err, ErrResponseNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
