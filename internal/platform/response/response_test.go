package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("reason is required"), http.StatusBadRequest},
		{domain.NewInvalidStateError("pending", "completed"), http.StatusUnprocessableEntity},
		{domain.NewForbiddenError("not your booking"), http.StatusForbidden},
		{fmt.Errorf("load: %w", domain.NewNotFoundError("Booking", "1")), http.StatusNotFound},
		{domain.NewConflictError("modified"), http.StatusConflict},
		{domain.NewPaymentError("refund", errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}
