package domain

// SourceType identifies the trust boundary a request was admitted through
type SourceType string

const (
	SourceInternalOperator SourceType = "internal-operator"
	SourceStorefrontProxy  SourceType = "storefront-proxy"
)

// AuthContext is attached to a request once it passes an admission check.
// Params is only populated for storefront proxy requests and never contains
// the signature.
type AuthContext struct {
	Source         SourceType
	Params         map[string]string
	ClientIdentity string
}
