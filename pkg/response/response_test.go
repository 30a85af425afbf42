package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/charlesng35/accountd/pkg/errors"
)

func performRequest(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSuccessEnvelope(t *testing.T) {
	rec, body := performRequest(t, func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"id": 1})
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, body.Success)
	require.Nil(t, body.Error)
}

func TestErrorEnvelopeFromAppError(t *testing.T) {
	rec, body := performRequest(t, func(c *gin.Context) {
		Error(c, appErrors.NewAccountNotFound(9))
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, body.Success)
	require.Equal(t, appErrors.ErrAccountNotFound.Code, body.Error.Code)
}

func TestErrorEnvelopeHidesRawErrors(t *testing.T) {
	rec, body := performRequest(t, func(c *gin.Context) {
		Error(c, errors.New("driver detail that must not leak"))
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, appErrors.ErrInternalServer.Code, body.Error.Code)
	require.NotContains(t, body.Error.Message, "driver detail")
}
