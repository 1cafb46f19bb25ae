package domain

// APIType identifies the API surface a request arrived through.
type APIType string

const (
	// APITypeAdmin is the privileged administrative surface.
	APITypeAdmin APIType = "admin"
	// APITypeShop is the restricted public storefront surface.
	APITypeShop APIType = "shop"
)

// Valid reports whether the API type is one of the known surfaces.
func (t APIType) Valid() bool {
	return t == APITypeAdmin || t == APITypeShop
}

// RequestContext carries the per-request state the authentication pipeline reads.
type RequestContext struct {
	APIType      APIType
	Session      *Session
	ChannelToken string
	IP           string
	UserAgent    string
	RequestID    string
}
