package shared

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wldmarket/internal/http/response"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
)

func respondCode(t *testing.T, err error, rules []MappedError) (int, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Request.Header.Set("Accept-Language", "en-US")

	RespondWithMappedError(c, err, rules, response.CodeInternal, "error.internal")

	var body struct {
		StatusCode int    `json:"status_code"`
		Msg        string `json:"msg"`
	}
	if decodeErr := json.Unmarshal(w.Body.Bytes(), &body); decodeErr != nil {
		t.Fatalf("decode response failed: %v", decodeErr)
	}
	return body.StatusCode, body.Msg
}

func TestTransitionErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: shipped -> paid", service.ErrInvalidTransition), response.CodeUnprocessable},
		{fmt.Errorf("%w: buyer", service.ErrUnauthorizedActor), response.CodeForbidden},
		{fmt.Errorf("%w: tracking number required", service.ErrPrecondition), response.CodeUnprocessable},
		{service.ErrConflict, response.CodeConflict},
		{service.ErrOrderNotFound, response.CodeNotFound},
		{fmt.Errorf("%w: %w", service.ErrSettlement, service.ErrIntegrity), response.CodeInternal},
	}
	for _, tc := range cases {
		code, _ := respondCode(t, tc.err, TransitionErrorRules)
		if code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, code)
		}
	}
}

func TestUnmappedErrorFallsBack(t *testing.T) {
	code, msg := respondCode(t, fmt.Errorf("disk full"), ConcatMappedErrors(ProductErrorRules, RateErrorRules))
	if code != response.CodeInternal || msg != "Internal server error" {
		t.Fatalf("unexpected fallback: %d %s", code, msg)
	}
	code, msg = respondCode(t, service.ErrRateUnavailable, ConcatMappedErrors(ProductErrorRules, RateErrorRules))
	if code != response.CodeUnavailable || msg != "Exchange rate unavailable" {
		t.Fatalf("unexpected rate mapping: %d %s", code, msg)
	}
}
