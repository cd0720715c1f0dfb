package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader is the header carrying the request id.
	RequestIDHeader = echo.HeaderXRequestID
	// CtxRequestID is the context key for the request id.
	CtxRequestID = "request_id"
	// CtxHandlerError carries the cause of a 500 that a handler answered
	// with a generic message.
	CtxHandlerError = "handler_error"
)

// RequestID reuses the caller's X-Request-ID or generates a new one, and
// echoes it in the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}
			c.Set(CtxRequestID, id)
			c.Response().Header().Set(RequestIDHeader, id)
			return next(c)
		}
	}
}

// GetRequestID returns the request id stored by RequestID.
func GetRequestID(c echo.Context) string {
	id, _ := c.Get(CtxRequestID).(string)
	return id
}

// Logger logs one line per request with a level chosen by status code.
func Logger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error response so the status is known
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			status := res.Status
			fields := []zap.Field{
				zap.String("request_id", GetRequestID(c)),
				zap.Int("status", status),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("route", c.Path()),
				zap.String("query", req.URL.RawQuery),
				zap.String("ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("body_size", res.Size),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			if cause, ok := c.Get(CtxHandlerError).(string); ok {
				fields = append(fields, zap.String("cause", cause))
			}

			switch {
			case status >= 500:
				log.Error("Server error", fields...)
			case status >= 400:
				log.Warn("Client error", fields...)
			default:
				log.Info("Request completed", fields...)
			}
			return nil
		}
	}
}
