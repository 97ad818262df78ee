package moex

import (
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public ISS root.
const DefaultBaseURL = "https://iss.moex.com/iss"

// baseTransportConfig returns the HTTP transport shared by ISS requests.
func baseTransportConfig() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   2,
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: baseTransportConfig(),
		Timeout:   60 * time.Second,
	}
}

// NewClient constructs a Client for baseURL (DefaultBaseURL when empty) throttled by limiter.
func NewClient(baseURL string, limiter *RateLimiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    newHTTPClient(),
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: limiter,
		now:     time.Now,
	}
}
