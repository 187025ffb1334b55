// Package units holds ready-made work units: plain delays, a deliberate
// failure and an HTTP fetch. All of them honour context cancellation.
package units

import (
	"context"
	"fmt"
	"go-batch-harness/internal/delay"
	"go-batch-harness/internal/models"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Sleep returns a unit body that completes after d with the payload as its
// message.
func Sleep(name string, d time.Duration) models.Func {
	return func(ctx context.Context, payload string) (models.Result, error) {
		slog.Info("Executing...", "unit", name)
		if err := delay.Delay(ctx, d, nil); err != nil {
			return models.Result{}, err
		}
		slog.Info("Done.", "unit", name)
		return models.Result{Msg: payload, IsOk: true}, nil
	}
}

// Crash returns a unit body that waits for after and then fails with
// "<name> crashed".
func Crash(name string, after time.Duration) models.Func {
	return func(ctx context.Context, payload string) (models.Result, error) {
		slog.Info("Executing...", "unit", name)
		if err := delay.Delay(ctx, after, nil); err != nil {
			return models.Result{}, err
		}
		return models.Result{}, fmt.Errorf("%s crashed", name)
	}
}

type FetcherService interface {
	Fetch(ctx context.Context, payload string) (models.Result, error)
}

type Fetcher struct {
	client *http.Client
	url    string
}

func NewFetcher(client *http.Client, url string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client: client,
		url:    url,
	}
}

// Fetch issues a GET against the configured URL and drains the body. Any
// non-2xx status is an error.
func (f *Fetcher) Fetch(ctx context.Context, payload string) (models.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return models.Result{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return models.Result{}, err
	}
	defer resp.Body.Close()

	slog.Info("Received response", "url", f.url, "status", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Result{}, fmt.Errorf("response status code does not indicate success: %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return models.Result{}, fmt.Errorf("read body: %w", err)
	}
	return models.Result{
		Msg:  fmt.Sprintf("%s: Request succeeded with status %d", payload, resp.StatusCode),
		IsOk: true,
	}, nil
}
