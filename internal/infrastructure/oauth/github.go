package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/github"
	"golang.org/x/oauth2"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

// GitHubResolver resolves a GitHub user access token into an identity.
type GitHubResolver struct {
	baseURL *url.URL
}

var _ ports.IdentityResolver = (*GitHubResolver)(nil)

// NewGitHubResolver targets apiURL, or api.github.com when empty. GitHub
// Enterprise installs pass their /api/v3/ endpoint.
func NewGitHubResolver(apiURL string) (*GitHubResolver, error) {
	if apiURL == "" {
		return &GitHubResolver{}, nil
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("github api url: %w", err)
	}
	return &GitHubResolver{baseURL: u}, nil
}

func (r *GitHubResolver) Provider() domain.Provider {
	return domain.ProviderGitHub
}

func (r *GitHubResolver) Resolve(ctx context.Context, accessToken string) (*domain.ExternalIdentity, error) {
	if accessToken == "" {
		return nil, domain.ErrUnauthenticated
	}
	client := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})))
	if r.baseURL != nil {
		client.BaseURL = r.baseURL
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, githubError(err)
	}

	email := user.GetEmail()
	if email == "" {
		// Private address: the profile omits it, the emails endpoint does not.
		email, err = primaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
	}
	if email == "" {
		return nil, fmt.Errorf("%w: github account has no verified primary email", domain.ErrUnauthenticated)
	}

	name := user.GetName()
	if name == "" {
		name = user.GetLogin()
	}

	return &domain.ExternalIdentity{
		Provider:   domain.ProviderGitHub,
		ProviderID: strconv.FormatInt(user.GetID(), 10),
		Email:      email,
		Name:       name,
	}, nil
}

func primaryEmail(ctx context.Context, client *github.Client) (string, error) {
	emails, _, err := client.Users.ListEmails(ctx, nil)
	if err != nil {
		return "", githubError(err)
	}
	for _, e := range emails {
		if e.GetPrimary() && e.GetVerified() {
			return e.GetEmail(), nil
		}
	}
	return "", nil
}

// githubError maps a rejected token to ErrUnauthenticated and keeps
// everything else as an upstream failure.
func githubError(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: github rejected token", domain.ErrUnauthenticated)
		}
	}
	return fmt.Errorf("github api: %w", err)
}
