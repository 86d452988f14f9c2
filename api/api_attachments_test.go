package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mailtrust/go-mailtrust-server/services"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newAttachmentsTestApi() *AttachmentsApi {
	rc := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	env := types.NewEnvironment(rc)
	return NewAttachmentsApi(services.NewAttachmentService(env))
}

func postJSON(t *testing.T, handler gin.HandlerFunc, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return w
}

func TestPostAttachmentRejectsMissingContent(t *testing.T) {
	attachmentsApi := newAttachmentsTestApi()
	w := postJSON(t, attachmentsApi.PostAttachment, "/api/v1/attachments", `{"name":"key.asc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostAttachmentRejectsInvalidBase64(t *testing.T) {
	attachmentsApi := newAttachmentsTestApi()
	w := postJSON(t, attachmentsApi.PostAttachment, "/api/v1/attachments", `{"contentBase64":"%%not-base64%%"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
