package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		write  func(c *gin.Context)
		status int
		code   int
	}{
		{"success", func(c *gin.Context) { Success(c, gin.H{"id": "c1"}) }, http.StatusOK, CodeSuccess},
		{"created", func(c *gin.Context) { Created(c, nil) }, http.StatusCreated, CodeSuccess},
		{"chat not found", ChatNotFound, http.StatusNotFound, CodeChatNotFound},
		{"model failed", func(c *gin.Context) { ModelFailed(c, "model unavailable") }, http.StatusInternalServerError, CodeModelInvocation},
		{"password wrong", PasswordWrong, http.StatusUnauthorized, CodePasswordWrong},
		{"unavailable", func(c *gin.Context) { ServiceUnavailable(c, gin.H{"redis": "down"}) }, http.StatusServiceUnavailable, CodeUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tc.write(c)

			assert.Equal(t, tc.status, w.Code)
			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}
