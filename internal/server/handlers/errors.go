package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/auth"
	"github.com/mamadbah2/mandi/internal/repository"
	"github.com/mamadbah2/mandi/internal/repository/sheets"
	"github.com/mamadbah2/mandi/internal/service/billing"
	"github.com/mamadbah2/mandi/internal/service/lots"
)

const dateLayout = "2006-01-02"

var errBadQuery = errors.New("invalid query parameter")

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lots.ErrInvalidInput),
		errors.Is(err, billing.ErrInvalidRange),
		errors.Is(err, errBadQuery):
		return http.StatusBadRequest
	case errors.Is(err, lots.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, lots.ErrLotLocked),
		errors.Is(err, lots.ErrOverSold),
		errors.Is(err, lots.ErrWeightPending),
		errors.Is(err, lots.ErrUnitMismatch),
		errors.Is(err, lots.ErrNothingToSettle):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sheets.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func actorOf(c *gin.Context) auth.Actor {
	actor, _ := auth.ActorFrom(c)
	return actor
}

// dateRange reads from/to (inclusive, YYYY-MM-DD) in loc and returns the
// half-open window [from, to+1d). Missing values default to fallback.
func dateRange(c *gin.Context, loc *time.Location, fallback time.Time) (time.Time, time.Time, error) {
	local := fallback.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	from, err := parseDay(c.Query("from"), loc, day)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDay(c.Query("to"), loc, from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to.AddDate(0, 0, 1), nil
}

// optionalRange is dateRange without defaults; zero values leave a side open.
func optionalRange(c *gin.Context, loc *time.Location) (time.Time, time.Time, error) {
	from, err := parseDay(c.Query("from"), loc, time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDay(c.Query("to"), loc, time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func parseDay(value string, loc *time.Location, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	day, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return time.Time{}, errors.Join(errBadQuery, err)
	}
	return day, nil
}
