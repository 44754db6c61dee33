// Package auth holds the two admission checks guarding the HTTP surface: a
// static key for internal operator endpoints and the storefront's HMAC
// signature for proxied endpoints. A route group uses exactly one of them.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"strconv"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/api/apperr"
	"github.com/cuongbtq/catalog-bridge/internal/api/domain"
	"github.com/cuongbtq/catalog-bridge/internal/api/respond"
	"github.com/cuongbtq/catalog-bridge/internal/api/signature"
	"github.com/gin-gonic/gin"
)

// DefaultKeyHeader carries the internal API key
const DefaultKeyHeader = "X-Internal-Api-Key"

// TimestampParam is the signed unix-seconds timestamp checked when a max age is set
const TimestampParam = "timestamp"

const contextKey = "auth_context"

// InternalKey admits requests carrying the configured static key in header
func InternalKey(expected, header string, logger *slog.Logger) gin.HandlerFunc {
	if header == "" {
		header = DefaultKeyHeader
	}
	expectedKey := []byte(expected)

	return func(c *gin.Context) {
		provided := c.GetHeader(header)
		if provided == "" {
			logger.Warn("Internal API key missing",
				slog.String("path", c.Request.URL.Path),
				slog.String("ip", c.ClientIP()),
			)
			respond.Fail(c, apperr.Unauthorized(apperr.CodeAPIKeyMissing, "API key is required"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), expectedKey) != 1 {
			logger.Warn("Internal API key rejected",
				slog.String("path", c.Request.URL.Path),
				slog.String("ip", c.ClientIP()),
			)
			respond.Fail(c, apperr.Unauthorized(apperr.CodeAPIKeyInvalid, "API key is invalid"))
			return
		}

		c.Set(contextKey, &domain.AuthContext{
			Source:         domain.SourceInternalOperator,
			ClientIdentity: c.ClientIP(),
		})
		c.Next()
	}
}

// SignatureOptions tunes storefront signature checks
type SignatureOptions struct {
	// MaxAge rejects signed timestamps older or newer than this window; zero disables the check.
	// Requests that do not sign a timestamp are not checked.
	MaxAge time.Duration
	Now    func() time.Time
}

// StorefrontSignature admits requests whose query parameters carry a valid
// storefront signature, and attaches the verified parameter set
func StorefrontSignature(secret []byte, opts SignatureOptions, logger *slog.Logger) gin.HandlerFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		query := c.Request.URL.Query()

		sig := query.Get(signature.Param)
		if sig == "" {
			logger.Warn("Storefront signature missing",
				slog.String("path", c.Request.URL.Path),
				slog.String("ip", c.ClientIP()),
			)
			respond.Fail(c, apperr.Unauthorized(apperr.CodeSignatureMissing, "Request signature is required"))
			return
		}

		if !signature.Verify(query, sig, secret) {
			logger.Warn("Storefront signature rejected",
				slog.String("path", c.Request.URL.Path),
				slog.String("ip", c.ClientIP()),
			)
			respond.Fail(c, apperr.Forbidden(apperr.CodeSignatureInvalid, "Request signature is invalid"))
			return
		}

		if opts.MaxAge > 0 && query.Has(TimestampParam) && !fresh(query.Get(TimestampParam), now(), opts.MaxAge) {
			logger.Warn("Storefront signature expired",
				slog.String("path", c.Request.URL.Path),
				slog.String("timestamp", query.Get(TimestampParam)),
			)
			respond.Fail(c, apperr.Forbidden(apperr.CodeSignatureExpired, "Request signature has expired"))
			return
		}

		c.Set(contextKey, &domain.AuthContext{
			Source:         domain.SourceStorefrontProxy,
			Params:         signature.Flatten(query),
			ClientIdentity: c.ClientIP(),
		})
		c.Next()
	}
}

func fresh(raw string, now time.Time, maxAge time.Duration) bool {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(secs, 0))
	return age <= maxAge && age >= -maxAge
}

// FromContext returns the admission result attached by InternalKey or StorefrontSignature
func FromContext(c *gin.Context) (*domain.AuthContext, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	authCtx, ok := v.(*domain.AuthContext)
	return authCtx, ok
}

// VerifiedParams returns the signature-covered parameters of a storefront
// request. Handlers read input from here, never from the raw query.
func VerifiedParams(c *gin.Context) map[string]string {
	authCtx, ok := FromContext(c)
	if !ok || authCtx.Source != domain.SourceStorefrontProxy {
		return map[string]string{}
	}
	return authCtx.Params
}
