package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/oauth2"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

const (
	defaultGoogleUserInfoURL  = "https://openidconnect.googleapis.com/v1/userinfo"
	defaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
)

type GoogleConfig struct {
	// ClientIDs lists the OAuth clients whose tokens are accepted. Every
	// token is rejected while it is empty.
	ClientIDs    []string
	UserInfoURL  string
	TokenInfoURL string
}

// GoogleResolver resolves a Google access token through the OpenID Connect
// userinfo endpoint after checking on the tokeninfo endpoint that the token
// was issued to one of our clients.
type GoogleResolver struct {
	clientIDs    []string
	userInfoURL  string
	tokenInfoURL string
}

var _ ports.IdentityResolver = (*GoogleResolver)(nil)

func NewGoogleResolver(cfg GoogleConfig) *GoogleResolver {
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultGoogleUserInfoURL
	}
	if cfg.TokenInfoURL == "" {
		cfg.TokenInfoURL = defaultGoogleTokenInfoURL
	}
	return &GoogleResolver{
		clientIDs:    slices.Clone(cfg.ClientIDs),
		userInfoURL:  cfg.UserInfoURL,
		tokenInfoURL: cfg.TokenInfoURL,
	}
}

func (r *GoogleResolver) Provider() domain.Provider {
	return domain.ProviderGoogle
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type googleTokenInfo struct {
	Aud string `json:"aud"`
	Azp string `json:"azp"`
	Sub string `json:"sub"`
}

func (r *GoogleResolver) Resolve(ctx context.Context, accessToken string) (*domain.ExternalIdentity, error) {
	if accessToken == "" {
		return nil, domain.ErrUnauthenticated
	}
	if len(r.clientIDs) == 0 {
		return nil, fmt.Errorf("%w: google login has no client ids configured", domain.ErrUnauthenticated)
	}

	tokenSub, err := r.checkAudience(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("google userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: google rejected token", domain.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("google userinfo: unexpected status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("google userinfo decode: %w", err)
	}
	if info.Sub == "" || info.Email == "" || !info.EmailVerified {
		return nil, fmt.Errorf("%w: google account has no verified email", domain.ErrUnauthenticated)
	}
	if tokenSub != "" && tokenSub != info.Sub {
		return nil, fmt.Errorf("%w: google token subject mismatch", domain.ErrUnauthenticated)
	}

	return &domain.ExternalIdentity{
		Provider:   domain.ProviderGoogle,
		ProviderID: info.Sub,
		Email:      info.Email,
		Name:       info.Name,
	}, nil
}

// checkAudience asks tokeninfo who the token was issued to and returns its
// subject.
func (r *GoogleResolver) checkAudience(ctx context.Context, accessToken string) (string, error) {
	form := url.Values{"access_token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenInfoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("google tokeninfo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := oauth2.NewClient(ctx, nil).Do(req)
	if err != nil {
		return "", fmt.Errorf("google tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("%w: google rejected token", domain.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("google tokeninfo: unexpected status %d", resp.StatusCode)
	}

	var info googleTokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return "", fmt.Errorf("google tokeninfo decode: %w", err)
	}
	if !slices.Contains(r.clientIDs, info.Aud) && !slices.Contains(r.clientIDs, info.Azp) {
		return "", fmt.Errorf("%w: google token issued to another client", domain.ErrUnauthenticated)
	}
	return info.Sub, nil
}
