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
	"net/http"
	"strings"
)

// Role is the kind of identity a key authenticates as.
type Role string

const (
	RoleAnyone   Role = ""
	RoleReporter Role = "reporter"
	RoleBridge   Role = "bridge"
)

// pathToRole maps the first path segment of a mutating route to the role
// allowed to call it. Reads are open to any authenticated key.
var pathToRole = map[string]Role{
	"admin":    RoleBridge,
	"deposits": RoleBridge,
	"hooks":    RoleBridge,
	"reports":  RoleReporter,
	"fees":     RoleAnyone,
}

// RequiredRole returns the role needed for method on path.
func RequiredRole(method, path string) Role {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) == 0 {
		return RoleAnyone
	}
	if parts[0] == "admin" {
		return RoleBridge
	}
	if method == http.MethodGet || method == http.MethodHead {
		return RoleAnyone
	}
	return pathToRole[parts[0]]
}

// Allows reports whether an identity holding role may call a route that needs required.
func (role Role) Allows(required Role) bool {
	return required == RoleAnyone || role == required
}
