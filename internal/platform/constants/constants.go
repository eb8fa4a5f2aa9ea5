// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Reader Timing: Scroll-wait, debounce, and preload defaults for the reading engine.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuers and cookie configuration.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "yomira-reader"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Reader Timing
//
// Fallback defaults only. Deployments override them through the environment
// (see config.Config); components receive effective values via constructors.

const (
	// DefaultScrollWaitTimeout bounds a single wait-and-scroll attempt.
	DefaultScrollWaitTimeout = 3 * time.Second

	// DefaultScrollRetryTimeout is the larger budget granted to a manual retry.
	DefaultScrollRetryTimeout = 5 * time.Second

	// DefaultRestorePollInterval is how often the restoration protocol re-checks
	// the chapter buffer while waiting for the target chapter to load.
	DefaultRestorePollInterval = 50 * time.Millisecond

	// DefaultSaveDebounce is the quiet window collapsing consecutive progress saves.
	DefaultSaveDebounce = 2 * time.Second

	// DefaultPreloadThreshold is the in-chapter progress fraction that triggers
	// preloading of the next chapter.
	DefaultPreloadThreshold = 0.90

	// DefaultGuestProgressTTL is how long guest reading positions are retained.
	DefaultGuestProgressTTL = 30 * 24 * time.Hour

	// DefaultGuestProgressCap is the maximum number of comics tracked per guest device.
	DefaultGuestProgressCap = 50
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "yomira.app"

	// RefreshTokenCookieName is the name of the cookie that stores the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath is the scoped path for the refresh token cookie.
	RefreshTokenCookiePath = "/api/v1/auth"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"

	// HeaderXDeviceID carries the client-minted guest device identifier that
	// scopes anonymous reading progress.
	HeaderXDeviceID = "X-Device-ID"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldItems   = "items"
	FieldTotal   = "total"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Database Schemas

const (
	SchemaCore    = "core"
	SchemaUsers   = "users"
	SchemaLibrary = "library"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixSession       = "auth:session:"
	RedisPrefixProgress      = "reader:progress:"
	RedisPrefixProgressIndex = "reader:progress:index:"
)
