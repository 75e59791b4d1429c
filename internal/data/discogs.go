package data

import (
	"fmt"

	"CrateScout/internal/conf"
	"CrateScout/pkg/discogs"
)

// NewDiscogsClient creates the shared Discogs API client.
func NewDiscogsClient(c *conf.Discogs) (*discogs.Client, error) {
	if c == nil {
		return nil, fmt.Errorf("discogs configuration is required")
	}

	return discogs.NewClient(discogs.Config{
		BaseURL:           c.BaseURL,
		Token:             c.Token,
		UserAgent:         c.UserAgent,
		ProxyURL:          c.ProxyURL,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	})
}
