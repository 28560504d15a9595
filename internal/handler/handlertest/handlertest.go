// Package handlertest builds gin engines for handler tests.
package handlertest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/middleware"
)

// Engine returns a test-mode engine that renders errors like production and
// acts as if doctor had signed in with records. A nil records leaves the
// request unauthenticated.
func Engine(doctor int64, records emr.RecordService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler("/login"))
	if records != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextDoctorID, doctor)
			c.Set(middleware.ContextRecords, records)
			c.Next()
		})
	}
	return r
}

func Do(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// PostForm submits form url-encoded.
func PostForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
