package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/internal/logger"
	"github.com/layer-3/hoopgate/internal/metrics"
	"github.com/layer-3/hoopgate/ports"
	"github.com/layer-3/hoopgate/service"
)

const headerRequestID = "X-Request-ID"

// RequestLogger scopes a logger with a request id into the request context and
// records every request once it completes
func RequestLogger(base *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(headerRequestID, requestID)

		log := base.With(logger.RequestID(requestID))
		c.Request = c.Request.WithContext(logger.ToContext(c.Request.Context(), log))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		m.Request(c.Request.Method, route, strconv.Itoa(status), elapsed)
		log.Debug("request",
			logger.Method(c.Request.Method),
			logger.Path(c.Request.URL.Path),
			logger.Status(status),
			logger.Duration(elapsed),
			logger.ClientIP(c.ClientIP()),
		)
	}
}

// RateLimit rejects clients over the limiter's budget. Limiter failures let
// the request through.
func RateLimit(limiter ports.RateLimiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.From(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		if !res.Allowed {
			m.Limited(c.FullPath())
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later."})
			return
		}

		c.Next()
	}
}

// StepTwoShield admits only clients arriving from the shortener after passing step one
func StepTwoShield(gate *service.GateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Referer") == "" {
			renderError(c, http.StatusForbidden, titleForbidden, "Direct access not allowed. You must complete the shortener.")
			c.Abort()
			return
		}

		linkID := c.Query("id")
		if linkID == "" {
			renderError(c, http.StatusBadRequest, titleBadRequest, "Missing link identifier.")
			c.Abort()
			return
		}

		err := gate.CheckStepTwoAccess(c.Request.Context(), c.ClientIP(), linkID, c.GetHeader("User-Agent"))
		if errors.Is(err, core.ErrPrerequisiteMissing) {
			renderError(c, http.StatusForbidden, titleForbidden, "Access denied. You must complete Step 1 successfully.")
			c.Abort()
			return
		}
		if err != nil {
			logger.From(c.Request.Context()).Error("step two guard failed", zap.Error(err))
			renderError(c, http.StatusInternalServerError, titleServer, "Something went wrong on our end. Please try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}
