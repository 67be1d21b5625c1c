// kotatsu/config/config.go
package config

const (
	AppVersion = "0.4.1"

	// Form & Post Limits
	MaxNameLen    = 75
	MaxSubjectLen = 100
	MaxBodyLen    = 8000

	// File Upload Limits
	MaxFileSize = 15 * 1024 * 1024 // 15MB

	// Thumbnail bounds. Thumbnails are scaled to fit inside this box,
	// preserving aspect ratio, with ceiling rounding.
	ThumbnailMaxWidth  = 250
	ThumbnailMaxHeight = 250

	// Tripcode derivation
	TripcodeSeparator = "!"
	TripcodeLength    = 10

	// Defaults for board creation
	DefaultThreadLimit = 100
	DefaultBumpLimit   = 300

	// Rate Limiting Defaults
	DefaultRateLimitEvery  = "30s"
	DefaultRateLimitBurst  = 3
	DefaultRateLimitPrune  = "1h"
	DefaultRateLimitExpire = "24h"

	// Ban expiry sweep
	DefaultBanSweepPeriod = "15m"

	// Bounded timeout for remote object storage calls
	DefaultRemoteTimeout = "30s"
)
