package claims

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/claimdesk/claimdesk/internal/platform/apperror"
)

// ListFilter narrows the caller's visible claim set before pagination. All
// fields are optional; zero values mean no constraint.
type ListFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Status     *Status
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	MinAmount  *float64
	MaxAmount  *float64
	Ordering   string
}

// orderings whitelists the ordering parameter; values map to ORDER BY
// fragments so client input never reaches SQL verbatim.
var orderings = map[string]string{
	"service_date":  "c.service_date ASC",
	"-service_date": "c.service_date DESC",
	"amount":        "c.amount ASC",
	"-amount":       "c.amount DESC",
	"status":        "c.status ASC",
	"-status":       "c.status DESC",
	"":              "c.created_at DESC",
}

// OrderBy returns the ORDER BY fragment for the requested ordering, falling
// back to newest-first.
func (f *ListFilter) OrderBy() string {
	if o, ok := orderings[f.Ordering]; ok {
		return o
	}
	return orderings[""]
}

// ParseListFilter reads the filter query parameters off the request.
func ParseListFilter(c echo.Context) (*ListFilter, error) {
	f := &ListFilter{Ordering: c.QueryParam("ordering")}

	if v := c.QueryParam("from_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, apperror.Validationf("from_date must be YYYY-MM-DD")
		}
		f.FromDate = &t
	}
	if v := c.QueryParam("to_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, apperror.Validationf("to_date must be YYYY-MM-DD")
		}
		f.ToDate = &t
	}
	if v := c.QueryParam("status"); v != "" {
		s := Status(v)
		if !s.Valid() {
			return nil, apperror.Validationf("unknown status %q", v)
		}
		f.Status = &s
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, apperror.Validationf("patient_id must be a UUID")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, apperror.Validationf("provider_id must be a UUID")
		}
		f.ProviderID = &id
	}
	if v := c.QueryParam("min_amount"); v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, apperror.Validationf("min_amount must be a number")
		}
		f.MinAmount = &a
	}
	if v := c.QueryParam("max_amount"); v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, apperror.Validationf("max_amount must be a number")
		}
		f.MaxAmount = &a
	}
	return f, nil
}
