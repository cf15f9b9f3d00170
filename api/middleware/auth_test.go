/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/xbridge"
	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	reporters map[string]string
}

func (f fakeResolver) Account() string { return "bridge" }

func (f fakeResolver) ReporterByKey(_ context.Context, key string) (*model.Reporter, error) {
	account, ok := f.reporters[key]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "reporter not found", nil)
	}
	return &model.Reporter{Account: account}, nil
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		secure       bool
		method       string
		path         string
		key          string
		expectedCode int
		wantCaller   string
	}{
		{name: "root is open", secure: true, method: http.MethodGet, path: "/", expectedCode: http.StatusOK},
		{name: "missing key in secure mode", secure: true, method: http.MethodGet, path: "/settings", expectedCode: http.StatusUnauthorized},
		{name: "missing key in open mode", method: http.MethodGet, path: "/settings", expectedCode: http.StatusOK},
		{name: "master key", secure: true, method: http.MethodPost, path: "/admin/enable", key: "master-key", expectedCode: http.StatusOK, wantCaller: "bridge"},
		{name: "reporter key", secure: true, method: http.MethodPost, path: "/reports", key: "alice-key", expectedCode: http.StatusOK, wantCaller: "alice"},
		{name: "reporter key reads", secure: true, method: http.MethodGet, path: "/reports/1", key: "alice-key", expectedCode: http.StatusOK, wantCaller: "alice"},
		{name: "reporter key on admin route", secure: true, method: http.MethodPost, path: "/admin/enable", key: "alice-key", expectedCode: http.StatusForbidden},
		{name: "reporter key on deposits", method: http.MethodPost, path: "/deposits", key: "alice-key", expectedCode: http.StatusForbidden},
		{name: "master key cannot report", method: http.MethodPost, path: "/reports", key: "master-key", expectedCode: http.StatusForbidden},
		{name: "unknown key", method: http.MethodGet, path: "/settings", key: "nope", expectedCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config.MockConfig(&config.Configuration{
				Server: config.ServerConfig{Secure: tt.secure, SecretKey: "master-key"},
			})

			var caller string
			router := gin.New()
			router.Use(NewAuthMiddleware(fakeResolver{reporters: map[string]string{"alice-key": "alice"}}).Authenticate())
			router.Any("/*path", func(c *gin.Context) {
				caller, _ = xbridge.CallerFrom(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(KeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, tt.wantCaller, caller)
		})
	}
}

func TestRequiredRole(t *testing.T) {
	assert.Equal(t, RoleBridge, RequiredRole(http.MethodGet, "/admin/reporters"))
	assert.Equal(t, RoleAnyone, RequiredRole(http.MethodGet, "/transfers"))
	assert.Equal(t, RoleReporter, RequiredRole(http.MethodPost, "/reports/3/execute"))
	assert.Equal(t, RoleBridge, RequiredRole(http.MethodPost, "/hooks/ledger"))
	assert.Equal(t, RoleAnyone, RequiredRole(http.MethodPost, "/fees/distribute"))
	assert.True(t, RoleBridge.Allows(RoleAnyone))
	assert.False(t, RoleReporter.Allows(RoleBridge))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rps, burst := 1.0, 1
	router := gin.New()
	router.Use(RateLimitMiddleware(&config.Configuration{RateLimit: config.RateLimitConfig{RequestsPerSecond: &rps, Burst: &burst}}))
	router.GET("/settings", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/settings", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	open := gin.New()
	open.Use(RateLimitMiddleware(&config.Configuration{}))
	open.GET("/settings", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
