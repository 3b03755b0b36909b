package httprate

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RLClient is an http.Client that waits for its rate limiter before
// every request. A nil limiter means no limiting.
type RLClient struct {
	Client      *http.Client
	Ratelimiter *rate.Limiter
}

func NewRLClient(
	timeout time.Duration,
	rl *rate.Limiter,
) *RLClient {
	return &RLClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		Ratelimiter: rl,
	}
}

func (c *RLClient) Do(req *http.Request) (*http.Response, error) {
	if c.Ratelimiter != nil {
		err := c.Ratelimiter.Wait(req.Context())
		if err != nil {
			return nil, err
		}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
