// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/taibuivan/piggybank/internal/platform/apperr"
	"github.com/taibuivan/piggybank/internal/platform/constants"
	"github.com/taibuivan/piggybank/internal/platform/ctxutil"
	"github.com/taibuivan/piggybank/internal/platform/respond"
	"github.com/taibuivan/piggybank/internal/platform/throttle"
)

// Throttler is the shared counter consulted by [Throttle], usually a [throttle.Limiter].
type Throttler interface {
	Allow(context context.Context, key string) (bool, time.Duration, error)
}

// Throttle caps hits per client address on a single route.
//
// Redis failures fail open: the request proceeds and a warning is logged.
func Throttle(throttler Throttler, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()
			key := throttle.Key(route, ctxutil.GetClientIP(ctx))

			allowed, retryAfter, err := throttler.Allow(ctx, key)
			if err != nil {
				ctxutil.GetLogger(ctx).WarnContext(ctx, "throttle_unavailable",
					slog.String("route", route),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(writer, request)
				return
			}

			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				writer.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(seconds))
				respond.Error(writer, request, apperr.RateLimited(seconds))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
