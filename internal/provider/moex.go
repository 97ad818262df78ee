package provider

import (
	"log/slog"
	"time"

	"moex-bonds/internal/provider/moex"
)

// MOEXProvider is a DataProvider backed by the Moscow Exchange ISS API.
// It embeds *moex.Client so the screener and the other modes call the endpoints directly.
type MOEXProvider struct {
	*moex.Client
}

// NewMOEXProvider creates a provider for baseURL with one rate limiter of apiDelay.
func NewMOEXProvider(baseURL string, apiDelay time.Duration) *MOEXProvider {
	return &MOEXProvider{
		Client: moex.NewClient(baseURL, moex.NewRateLimiter(apiDelay)),
	}
}

// GetName returns provider name
func (p *MOEXProvider) GetName() string {
	return "MOEX ISS"
}

// SetLogger routes request logging to l (nil restores slog.Default).
func (p *MOEXProvider) SetLogger(l *slog.Logger) {
	if p.Client != nil {
		p.Client.Logger = l
	}
}
