package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sicilystay/stayservice/internal/audit"
	"github.com/sicilystay/stayservice/internal/auth"
	"github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/metrics"
	"github.com/sicilystay/stayservice/internal/ratelimit"
	"github.com/sicilystay/stayservice/internal/tracing"
)

const (
	headerRequestID = "X-Request-ID"
	ctxKeyAdmin     = "admin_subject"
)

// RequestID propagates or assigns a request id
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(log.WithRequestID(c.Request.Context(), id))
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
	}
}

// Tracing opens a server span per request
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := tracing.Extract(c.Request.Context(), c.Request.Header)
		ctx, span := tracing.StartSpan(ctx, "HTTP "+c.Request.Method+" "+route(c),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route(c)))
		defer span.End()

		if traceID := tracing.TraceID(ctx); traceID != "" {
			ctx = log.WithTraceID(ctx, traceID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// AccessLog writes one structured line per request
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.L(c.Request.Context()).Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", route(c)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Metrics records request counts and latency per route
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, route(c), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// AdminAuth requires a valid admin bearer token. Rejections go to the audit trail.
func AdminAuth(validator TokenValidator, trail *audit.Trail) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClient(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			if err := trail.AccessDenied(ctx, route(c), "missing token"); err != nil {
				log.L(ctx).Warn("Audit event not recorded", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("missing admin token", "unauthorized"))
			return
		}

		subject, err := validator.Validate(ctx, token)
		if err != nil {
			log.L(ctx).Warn("Admin token rejected", zap.Error(err))
			if auditErr := trail.AccessDenied(ctx, route(c), err.Error()); auditErr != nil {
				log.L(ctx).Warn("Audit event not recorded", zap.Error(auditErr))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("invalid admin token", "unauthorized"))
			return
		}

		c.Set(ctxKeyAdmin, subject)
		c.Next()
	}
}

// RateLimit rejects requests over the limiter's budget with 429. A limiter
// error lets the request through.
func RateLimit(scope string, limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		allowed, err := limiter.Allow(ctx, scope+":"+c.ClientIP())
		if err != nil {
			log.L(ctx).Warn("Rate limit check failed, allowing request", zap.Error(err))
			metrics.RecordError("rate_limit", scope)
			c.Next()
			return
		}
		if !allowed {
			metrics.RecordRejection(scope, reasonRateLimited)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("too many requests", reasonRateLimited))
			return
		}
		c.Next()
	}
}

// route is the matched route template; unknown paths share one label.
func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
