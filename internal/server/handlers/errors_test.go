package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/repository"
	"github.com/mamadbah2/mandi/internal/repository/sheets"
	"github.com/mamadbah2/mandi/internal/service/billing"
	"github.com/mamadbah2/mandi/internal/service/lots"
)

func queryContext(t *testing.T, query string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/finance/billing"+query, nil)
	return c
}

func TestDateRange(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	// 20:00 UTC is already the next day in Kolkata.
	fallback := time.Date(2026, 1, 21, 20, 0, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, loc) }

	cases := []struct {
		name     string
		query    string
		from, to time.Time
		wantErr  bool
	}{
		{name: "defaults to the local day", query: "", from: day(22), to: day(23)},
		{name: "single day", query: "?from=2026-01-20", from: day(20), to: day(21)},
		{name: "inclusive end", query: "?from=2026-01-20&to=2026-01-22", from: day(20), to: day(23)},
		{name: "to before from passes through", query: "?from=2026-01-22&to=2026-01-20", from: day(22), to: day(21)},
		{name: "bad from", query: "?from=20-01-2026", wantErr: true},
		{name: "bad to", query: "?to=tomorrow", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, to, err := dateRange(queryContext(t, tc.query), loc, fallback)
			if tc.wantErr {
				assert.ErrorIs(t, err, errBadQuery)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.from.Equal(from), "from = %s", from)
			assert.True(t, tc.to.Equal(to), "to = %s", to)
		})
	}
}

func TestOptionalRange(t *testing.T) {
	loc := time.UTC

	from, to, err := optionalRange(queryContext(t, ""), loc)
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())

	from, to, err = optionalRange(queryContext(t, "?to=2026-01-22"), loc)
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.Equal(t, time.Date(2026, 1, 23, 0, 0, 0, 0, loc), to)

	from, to, err = optionalRange(queryContext(t, "?from=2026-01-22"), loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 22, 0, 0, 0, 0, loc), from)
	assert.True(t, to.IsZero())

	_, _, err = optionalRange(queryContext(t, "?from=2026/01/22"), loc)
	assert.ErrorIs(t, err, errBadQuery)
	assert.Equal(t, http.StatusBadRequest, statusFor(err))
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		lots.ErrInvalidInput:          http.StatusBadRequest,
		billing.ErrInvalidRange:       http.StatusBadRequest,
		lots.ErrForbidden:             http.StatusForbidden,
		repository.ErrNotFound:        http.StatusNotFound,
		repository.ErrVersionConflict: http.StatusConflict,
		lots.ErrLotLocked:             http.StatusUnprocessableEntity,
		lots.ErrOverSold:              http.StatusUnprocessableEntity,
		sheets.ErrDisabled:            http.StatusServiceUnavailable,
		errors.New("disconnected"):    http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/records/x", nil)

	respondError(c, zap.NewNop(), errors.New("mongo: secret dsn"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
