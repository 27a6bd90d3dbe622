package domain

// Provider names an external identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// ExternalIdentity is an identity already verified by a third-party provider.
type ExternalIdentity struct {
	Provider   Provider `json:"provider"`
	ProviderID string   `json:"provider_id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
}
