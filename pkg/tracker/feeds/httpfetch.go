package feeds

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultFetchTimeout = 15 * time.Second

// FetchOptions controls a single HTTP fetch of a feed payload.
type FetchOptions struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// FetchURL downloads a feed payload with retries. Upstream feeds fall
// over regularly so transient failures are retried with exponential
// backoff before giving up on the pass.
func FetchURL(ctx context.Context, opts FetchOptions) ([]byte, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultFetchTimeout
	}

	client := &http.Client{
		Timeout: timeout,
	}

	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", opts.URL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header["user-agent"] = []string{"curl/7.54.1"} // some upstreams sit behind cloudflare and reject requests with no user agent
		for key, value := range opts.Headers {
			req.Header.Set(key, value)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("feed returned status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	retry := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)

	if err := backoff.Retry(operation, backoff.WithContext(retry, ctx)); err != nil {
		return nil, err
	}

	return body, nil
}

// RoundCoordinate normalises a coordinate to 6 decimal places so that
// equal positions fingerprint identically across passes.
func RoundCoordinate(value float64) string {
	return strconv.FormatFloat(math.Round(value*1e6)/1e6, 'f', -1, 64)
}

// RoundAltitude normalises an altitude to 1 decimal place.
func RoundAltitude(value float64) string {
	return strconv.FormatFloat(math.Round(value*10)/10, 'f', -1, 64)
}
