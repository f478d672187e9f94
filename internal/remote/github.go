package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var (
	// ErrConflict is returned when the file changed since its SHA was read.
	ErrConflict     = errors.New("remote file was modified concurrently")
	ErrUnauthorized = errors.New("remote store rejected the credential")
	ErrNoToken      = errors.New("no credential provided")
)

type GitHubConfig struct {
	BaseURL string
	Owner   string
	Repo    string
	Branch  string
	Path    string
	// RequestsPerSecond limits calls to the contents API. Zero disables limiting.
	RequestsPerSecond float64
}

// GitHubStore reads and writes a single file through the GitHub contents API,
// using the file's blob SHA as the optimistic concurrency token.
type GitHubStore struct {
	config  GitHubConfig
	limiter *rate.Limiter
}

func NewGitHubStore(config GitHubConfig) (*GitHubStore, error) {
	if config.Owner == "" || config.Repo == "" || config.Path == "" {
		return nil, fmt.Errorf("github store requires owner, repo and path")
	}
	if config.BaseURL != "" && !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return &GitHubStore{config: config, limiter: limiter}, nil
}

// Fetch returns the current content and SHA of the file.
func (s *GitHubStore) Fetch(ctx context.Context, token string) (string, string, error) {
	client, err := s.client(ctx, token)
	if err != nil {
		return "", "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	var opts *github.RepositoryContentGetOptions
	if s.config.Branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: s.config.Branch}
	}
	file, _, _, err := client.Repositories.GetContents(ctx, s.config.Owner, s.config.Repo, s.config.Path, opts)
	if err != nil {
		return "", "", classify(err)
	}
	if file == nil {
		return "", "", fmt.Errorf("%s is not a file", s.config.Path)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", "", fmt.Errorf("failed to decode content of %s: %w", s.config.Path, err)
	}
	return content, file.GetSHA(), nil
}

// Put replaces the file content. The write is rejected with ErrConflict when sha
// no longer matches the file on the remote.
func (s *GitHubStore) Put(ctx context.Context, token, content, sha, message string) error {
	client, err := s.client(ctx, token)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
		SHA:     github.String(sha),
	}
	if s.config.Branch != "" {
		opts.Branch = github.String(s.config.Branch)
	}

	result, _, err := client.Repositories.UpdateFile(ctx, s.config.Owner, s.config.Repo, s.config.Path, opts)
	if err != nil {
		return classify(err)
	}
	slog.Debug("remote file updated", "path", s.config.Path, "previous_sha", sha, "sha", result.GetContent().GetSHA())
	return nil
}

func (s *GitHubStore) client(ctx context.Context, token string) (*github.Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if s.config.BaseURL != "" {
		baseURL, err := url.Parse(s.config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", s.config.BaseURL, err)
		}
		client.BaseURL = baseURL
	}
	return client, nil
}

func classify(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusConflict:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return err
}
