package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"quote-proxy/src/helpers"
	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/metrics"
	"quote-proxy/src/models"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

// Chart bodies for 5y/1m can be large but never this large.
const DefaultMaxBodyBytes = 16 << 20

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Client       *http.Client
	Logger       *logger.Logger
	Metrics      *metrics.QuoteMetrics
	Clock        clock.Clock

	// Jitter returns the wait before the next attempt.
	Jitter func() time.Duration

	MaxBodyBytes int64
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger, m *metrics.QuoteMetrics) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent, log.Named("ProxyManager")),
		Logger:       log,
		Metrics:      m,
		Clock:        clock.WallClock,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
	nm.Jitter = UniformJitter(
		time.Duration(cfg.Network.RetryMinDelayMs)*time.Millisecond,
		time.Duration(cfg.Network.RetryMaxDelayMs)*time.Millisecond,
	)
	nm.Client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

// UniformJitter draws delays uniformly from [min, max), spreading out
// concurrent retries against a shared rate limit.
func UniformJitter(min, max time.Duration) func() time.Duration {
	return func() time.Duration {
		if max <= min {
			return min
		}
		return min + rand.N(max-min)
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	if nm.ProxyManager.HasProxies() {
		transport.Proxy = nm.ProxyManager.ProxyFunc
	}

	return &http.Client{
		Transport: transport,
		Timeout:   nm.attemptTimeout(),
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) attemptTimeout() time.Duration {
	return time.Duration(nm.Config.Network.RequestTimeout) * time.Second
}

// -----------------------------------------------------------------------------

// Get performs a GET request with bounded retries and proxy rotation.
// Network.MaxRetries is the total number of attempts. 429 answers and
// transport failures are retried, as are 5xx when RetryServerErrors is set.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	attempts := nm.Config.Network.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var body []byte
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			b, err := nm.attempt(ctx, finalUrl)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		IsFatalError: func(err error) bool {
			return !nm.isRetryable(ctx, err)
		},
		NotifyFunc: func(err error, attempt int) {
			nm.Logger.Info("Request failed (attempt %d/%d): %v", attempt, attempts, err)
			if helpers.IsRateLimited(err) {
				nm.ProxyManager.RotateProxy()
			}
		},
		Attempts:    attempts,
		Delay:       nm.Jitter(),
		BackoffFunc: func(time.Duration, int) time.Duration { return nm.Jitter() },
		Clock:       nm.Clock,
		Stop:        ctx.Done(),
	})

	switch {
	case err == nil:
		return body, nil
	case retry.IsAttemptsExceeded(err):
		lastErr := retry.LastError(err)
		nm.Logger.Warning("Giving up on %s after %d attempts: %v", reqUrl.Path, attempts, lastErr)
		return nil, lastErr
	case retry.IsRetryStopped(err):
		return nil, helpers.NewNetworkError("request cancelled", ctx.Err())
	default:
		return nil, err
	}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) attempt(ctx context.Context, finalUrl string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, nm.attemptTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, finalUrl, nil)
	if err != nil {
		return nil, err
	}

	// Use dynamic User-Agent
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "application/json")

	if nm.Metrics != nil {
		nm.Metrics.UpstreamAttempts.Inc()
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		return nil, helpers.NewNetworkError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, helpers.NewRateLimitedError("yahoo rate limited the request", nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, helpers.NewUpstreamStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, nm.MaxBodyBytes+1))
	if err != nil {
		return nil, helpers.NewNetworkError("failed to read response body", err)
	}
	// The same oversized answer would come back on retry, so this is fatal
	if int64(len(body)) > nm.MaxBodyBytes {
		return nil, helpers.NewUpstreamShapeError(fmt.Sprintf("response body exceeds %d bytes", nm.MaxBodyBytes), nil)
	}

	return body, nil
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case helpers.IsRateLimited(err), helpers.IsNetwork(err):
		return true
	case helpers.IsServerError(err):
		return nm.Config.Network.RetryServerErrors
	default:
		return false
	}
}
