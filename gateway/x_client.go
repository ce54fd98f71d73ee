package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"XMarketingAPI/models"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrMetricsNotAvailable is returned by FetchMetrics when the remote post
// cannot be found, typically because it was deleted upstream.
var ErrMetricsNotAvailable = errors.New("metrics not available for remote post")

// maxRateLimitWait caps how long a single publish call blocks on a remote
// 429 before giving up.
const maxRateLimitWait = 15 * time.Minute

type Config struct {
	BearerToken   string
	APIBaseURL    string
	UploadBaseURL string
	PublishRPS    float64
	PublishBurst  int
}

// XClient talks to the X API v2 for posting and metrics and to the v1.1
// upload host for media. All remote calls go through a client-side rate
// limiter and a circuit breaker; rate-limit waits block the caller instead
// of surfacing as errors.
type XClient struct {
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *logrus.Logger
}

func NewXClient(cfg Config, logger *logrus.Logger) *XClient {
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "x-api",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &XClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.PublishRPS), cfg.PublishBurst),
		breaker:    breaker,
		logger:     logger,
	}
}

// IsConfigured reports whether API credentials are present.
func (c *XClient) IsConfigured() bool {
	return c.cfg.BearerToken != ""
}

// do sends the request through the circuit breaker and returns the response
// body. Server errors (5xx) count as breaker failures; 4xx responses do not,
// since they indicate a problem with the request, not the service.
func (c *XClient) do(req *http.Request) (int, http.Header, []byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("x api returned %d: %s", resp.StatusCode, body)
		}
		return resp, nil
	})
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, body, nil
}

// Publish creates a post with the given body and previously uploaded media
// handles, returning the remote id. On a 429 it blocks until the reported
// rate-limit window resets and retries, so callers must not assume the call
// returns quickly under load.
func (c *XClient) Publish(ctx context.Context, body string, mediaIDs []string) (string, error) {
	payload := map[string]interface{}{"text": body}
	if len(mediaIDs) > 0 {
		payload["media"] = map[string]interface{}{"media_ids": mediaIDs}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.APIBaseURL+"/2/tweets", bytes.NewReader(data))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		status, header, respBody, err := c.do(req)
		if err != nil {
			return "", err
		}

		if status == http.StatusTooManyRequests {
			if err := c.waitForReset(ctx, header); err != nil {
				return "", err
			}
			continue
		}

		if status != http.StatusCreated && status != http.StatusOK {
			return "", fmt.Errorf("publish rejected with status %d: %s", status, respBody)
		}

		var result struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return "", fmt.Errorf("decoding publish response: %w", err)
		}
		if result.Data.ID == "" {
			return "", errors.New("publish response missing post id")
		}

		return result.Data.ID, nil
	}
}

// UploadMedia uploads raw media bytes to the upload host and returns the
// opaque remote media handle.
func (c *XClient) UploadMedia(ctx context.Context, data []byte) (string, error) {
	category, err := mediaCategory(data)
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("media_data", encodeMedia(data))
	form.Set("media_category", category)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.UploadBaseURL+"/1.1/media/upload.json", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, _, respBody, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("media upload rejected with status %d: %s", status, respBody)
	}

	var result struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if result.MediaIDString == "" {
		return "", errors.New("upload response missing media id")
	}

	return result.MediaIDString, nil
}

// FetchMetrics reads the public engagement metrics for a published post.
// Returns ErrMetricsNotAvailable if the post no longer exists remotely.
func (c *XClient) FetchMetrics(ctx context.Context, remoteID string) (*models.PostMetrics, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/2/tweets/%s?tweet.fields=public_metrics", c.cfg.APIBaseURL, remoteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	status, _, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrMetricsNotAvailable
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("metrics fetch rejected with status %d: %s", status, respBody)
	}

	var result struct {
		Data *struct {
			PublicMetrics struct {
				ImpressionCount int `json:"impression_count"`
				RetweetCount    int `json:"retweet_count"`
				LikeCount       int `json:"like_count"`
				ReplyCount      int `json:"reply_count"`
			} `json:"public_metrics"`
		} `json:"data"`
		Errors []struct {
			Title string `json:"title"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding metrics response: %w", err)
	}

	// The v2 API reports deleted posts with 200 + an errors array.
	if result.Data == nil {
		return nil, ErrMetricsNotAvailable
	}

	pm := result.Data.PublicMetrics
	return &models.PostMetrics{
		Impressions: pm.ImpressionCount,
		Likes:       pm.LikeCount,
		Shares:      pm.RetweetCount,
		Replies:     pm.ReplyCount,
	}, nil
}

// waitForReset blocks until the rate-limit window indicated by the response
// headers has passed, or the context is cancelled.
func (c *XClient) waitForReset(ctx context.Context, header http.Header) error {
	wait := 30 * time.Second

	if reset := header.Get("x-rate-limit-reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if until := time.Until(time.Unix(epoch, 0)); until > 0 {
				wait = until
			}
		}
	} else if retry := header.Get("Retry-After"); retry != "" {
		if secs, err := strconv.Atoi(retry); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
	}

	if wait > maxRateLimitWait {
		return fmt.Errorf("rate limit reset %s away exceeds maximum wait", wait)
	}

	c.logger.WithField("wait", wait.String()).Warn("X API rate limited, blocking until reset")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
