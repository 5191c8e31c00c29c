package effects

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storelane/storelane/internal/config"
)

// IndexNowNotifier pings the IndexNow endpoint so search engines recrawl a
// store page after its visibility changed.
type IndexNowNotifier struct {
	endpoint string
	key      string
	baseURL  string
	client   *http.Client
}

func NewIndexNowNotifier(cfg config.Config) *IndexNowNotifier {
	if cfg.IndexNowEndpoint == "" || cfg.IndexNowKey == "" {
		return nil
	}
	return &IndexNowNotifier{
		endpoint: cfg.IndexNowEndpoint,
		key:      cfg.IndexNowKey,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *IndexNowNotifier) Name() string { return "indexnow" }

func (n *IndexNowNotifier) NotifyStoreChanged(ctx context.Context, change StoreChange) error {
	target := n.storeURL(change.Store.CustomDomain, change.Store.Slug)

	ping, err := url.Parse(n.endpoint)
	if err != nil {
		return fmt.Errorf("parse indexnow endpoint: %w", err)
	}
	q := ping.Query()
	q.Set("url", target)
	q.Set("key", n.key)
	ping.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ping.String(), nil)
	if err != nil {
		return err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("indexnow responded %d for %s", resp.StatusCode, target)
	}
	return nil
}

func (n *IndexNowNotifier) storeURL(customDomain, slug string) string {
	if customDomain != "" {
		return "https://" + customDomain
	}
	return n.baseURL + "/" + slug
}
