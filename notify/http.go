package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTTPConfig struct {
	URL      string `mapstructure:"url"`
	Token    string `mapstructure:"token"`
	Timeout  int    `mapstructure:"timeout"`
	Insecure bool   `mapstructure:"insecure"`
}

// HTTPNotifier posts message=<text> with a bearer token, the LINE Notify
// contract.
type HTTPNotifier struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPNotifier(cfg HTTPConfig) *HTTPNotifier {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // devices ship without a CA bundle
	}
	return &HTTPNotifier{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (n *HTTPNotifier) Name() string { return "http" }

func (n *HTTPNotifier) Notify(ctx context.Context, message string) error {
	body := url.Values{"message": {message}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s: %w", n.url, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode > 299 || resp.StatusCode < 200 {
		return fmt.Errorf("notify %s: status %d: %s", n.url, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
