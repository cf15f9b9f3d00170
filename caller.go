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

package xbridge

import (
	"context"
	"fmt"

	"github.com/jerry-enebeli/xbridge/internal/apierror"
)

type callerKey struct{}

// WithCaller returns a context carrying the authenticated identity of the
// caller. The HTTP layer sets it after verifying the request's key.
func WithCaller(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, callerKey{}, account)
}

func CallerFrom(ctx context.Context) (string, bool) {
	account, ok := ctx.Value(callerKey{}).(string)
	return account, ok && account != ""
}

// requireCaller fails unless the call was authenticated as account.
func requireCaller(ctx context.Context, account string) error {
	caller, ok := CallerFrom(ctx)
	if !ok || caller != account {
		return apierror.NewAPIError(apierror.ErrUnauthorized, fmt.Sprintf("missing authority of %s", account), nil)
	}
	return nil
}
