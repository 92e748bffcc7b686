package api

// SessionHeader carries the browse session id on every /browse request.
const SessionHeader = "X-Browse-Session"

// Cache-Control header values.
const (
	CacheOneDay  = "public, max-age=86400"
	CacheNoStore = "no-cache"
)

// Facet listings are capped so a huge author table does not flood a single response.
const (
	defaultFacetLimit = 500
	maxFacetLimit     = 5000
)
