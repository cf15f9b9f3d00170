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
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/xbridge"
	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/model"
)

const (
	KeyHeader = "X-Bridge-Key"
)

// KeyResolver finds the identity behind a request key.
type KeyResolver interface {
	Account() string
	ReporterByKey(ctx context.Context, key string) (*model.Reporter, error)
}

// AuthMiddleware authenticates callers with the X-Bridge-Key header. The
// server's secret key authenticates as the bridge account, a reporter key as
// that reporter.
type AuthMiddleware struct {
	service KeyResolver
}

func NewAuthMiddleware(service KeyResolver) *AuthMiddleware {
	return &AuthMiddleware{service: service}
}

// Authenticate returns a middleware that resolves the caller and stores it on
// the request context, where the bridge checks it.
//
// Responses:
// - 401 Unauthorized: When the key is missing in secure mode or unknown.
// - 403 Forbidden: When the key's role may not call the route.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/" {
			c.Next()
			return
		}

		conf, err := config.Fetch()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "configuration is not loaded"})
			return
		}

		key := extractKey(c)
		if key == "" {
			if conf.Server.Secure {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required. Use X-Bridge-Key header"})
				return
			}
			c.Next()
			return
		}

		role := RoleReporter
		account := ""
		if conf.Server.SecretKey != "" && secureCompare(conf.Server.SecretKey, key) {
			role = RoleBridge
			account = m.service.Account()
			c.Set("isMasterKey", true)
		} else {
			reporter, err := m.service.ReporterByKey(c.Request.Context(), key)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
				return
			}
			account = reporter.Account
			c.Set("reporter", reporter)
		}

		if required := RequiredRole(c.Request.Method, c.Request.URL.Path); !role.Allows(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions, " + string(required) + " key required"})
			return
		}

		c.Request = c.Request.WithContext(xbridge.WithCaller(c.Request.Context(), account))
		c.Next()
	}
}

func extractKey(c *gin.Context) string {
	return c.GetHeader(KeyHeader)
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
