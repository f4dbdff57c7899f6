package overpass

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/windsite/internal/feature"
)

// DefaultURL is the public Overpass interpreter.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// Options configures the client.
type Options struct {
	URL         string
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	RateLimit   float64
	BaseBackoff time.Duration
}

// adaptiveLimiter wraps a rate.Limiter that halves on 429 and recovers by
// 20% per success, bounded to [initial/4, initial].
type adaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

func newAdaptiveLimiter(r rate.Limit) *adaptiveLimiter {
	return &adaptiveLimiter{limiter: rate.NewLimiter(r, 1), initial: r, current: r}
}

func (a *adaptiveLimiter) wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *adaptiveLimiter) onSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = min(a.current*1.2, a.initial)
	a.limiter.SetLimit(a.current)
}

func (a *adaptiveLimiter) onRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = max(a.current*0.5, a.initial/4)
	a.limiter.SetLimit(a.current)
	zap.L().Warn("overpass: reducing request rate after 429",
		zap.Float64("new_rate", float64(a.current)),
	)
}

func (a *adaptiveLimiter) limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Client queries an Overpass endpoint with rate limiting and retries.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *adaptiveLimiter
}

// NewClient creates a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "windsite/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Second
	}
	return &Client{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: newAdaptiveLimiter(rate.Limit(opts.RateLimit)),
	}
}

// Fetch returns the raw records within radiusKM of the center. The result
// still needs the radius filter: the query covers the bounding box.
func (c *Client) Fetch(ctx context.Context, lon, lat, radiusKM float64) ([]feature.RawRecord, error) {
	log := zap.L().With(zap.String("component", "overpass"), zap.String("url", c.opts.URL))

	q := Query(BBoxAround(lon, lat, radiusKM), int(c.opts.Timeout/time.Second))
	body, err := c.post(ctx, q)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	records, err := feature.DecodeOverpass(body)
	if err != nil {
		return nil, err
	}
	log.Info("overpass query complete",
		zap.Float64("lon", lon),
		zap.Float64("lat", lat),
		zap.Float64("radius_km", radiusKM),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (c *Client) post(ctx context.Context, query string) (io.ReadCloser, error) {
	form := url.Values{"data": {query}}.Encode()

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if err := c.limiter.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "overpass: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, strings.NewReader(form))
		if err != nil {
			return nil, eris.Wrap(err, "overpass: create request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.opts.UserAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "overpass: request")
			}
			lastErr = err
			zap.L().Warn("overpass request failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
			c.backoff(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusGatewayTimeout:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("overpass: http %d", resp.StatusCode)
			c.limiter.onRateLimit()
			c.backoff(ctx, attempt)
			continue
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("overpass: http %d", resp.StatusCode)
			zap.L().Warn("overpass server error, retrying",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		case resp.StatusCode != http.StatusOK:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, eris.Errorf("overpass: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		c.limiter.onSuccess()
		return resp.Body, nil
	}

	return nil, eris.Wrap(lastErr, "overpass: all retries exhausted")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	d := time.Duration(float64(c.opts.BaseBackoff) * math.Pow(2, float64(attempt)))
	d = min(d, 30*time.Second)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int63n(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
