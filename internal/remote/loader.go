package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/signtracker/internal/csvlog"
	"golang.org/x/sync/errgroup"
)

var ErrLoad = errors.New("failed to load remote list")

// Loader fetches the reference list and the inspection log from raw file URLs.
type Loader struct {
	client       *http.Client
	referenceURL string
	logURL       string
	delimiter    string
}

func NewLoader(client *http.Client, referenceURL, logURL, delimiter string) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{
		client:       client,
		referenceURL: referenceURL,
		logURL:       logURL,
		delimiter:    delimiter,
	}
}

// Load issues both fetches concurrently and returns once both have completed.
// Either failure fails the whole load.
func (l *Loader) Load(ctx context.Context) (reference []csvlog.Record, log []csvlog.Record, err error) {
	var referenceText, logText string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := l.fetch(gctx, l.referenceURL)
		referenceText = text
		return err
	})
	g.Go(func() error {
		text, err := l.fetch(gctx, l.logURL)
		logText = text
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	reference = csvlog.Decode(referenceText, l.delimiter)
	log = csvlog.Decode(logText, l.delimiter)
	slog.Info("remote lists loaded", "reference_count", len(reference), "log_count", len(log))
	return reference, log, nil
}

func (l *Loader) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLoad, url, err)
	}
	// raw file hosts cache aggressively; the log must be current
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLoad, url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close response body", "url", url, "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: status %d", ErrLoad, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLoad, url, err)
	}
	return string(body), nil
}
