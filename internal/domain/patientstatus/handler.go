package patientstatus

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/claimdesk/claimdesk/internal/platform/apperror"
	"github.com/claimdesk/claimdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patient-statuses")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/history/:patient_id", h.History)
}

func (h *Handler) Create(c echo.Context) error {
	var ps PatientStatus
	if err := c.Bind(&ps); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &ps); err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, ps)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	statuses, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(statuses, total, pg.Limit, pg.Offset))
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	statuses, err := h.svc.History(c.Request().Context(), patientID)
	if err != nil {
		return apperror.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, statuses)
}
