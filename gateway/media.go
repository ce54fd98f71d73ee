package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"XMarketingAPI/models"

	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"
)

// maxMediaBytes bounds how much we pull down for a single media reference.
const maxMediaBytes = 64 << 20

// PublishPost resolves the post's media references, uploads them, and
// publishes the post, returning the remote id.
//
// Media failures are deliberately non-fatal: a reference that cannot be
// fetched or uploaded is logged and skipped, and the post goes out with
// whatever media made it through (or text-only). Only the final publish
// call can fail the attempt.
func (c *XClient) PublishPost(ctx context.Context, post *models.Post) (string, error) {
	var mediaIDs []string
	for _, media := range post.Media {
		handle, err := c.resolveAndUpload(ctx, media.URL)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"post_id":   post.ID,
				"media_url": media.URL,
			}).WithError(err).Warn("skipping media that failed to upload")
			continue
		}
		mediaIDs = append(mediaIDs, handle)
	}

	return c.Publish(ctx, post.Content, mediaIDs)
}

// resolveAndUpload fetches the media bytes from wherever they are hosted and
// uploads them, returning the remote media handle.
func (c *XClient) resolveAndUpload(ctx context.Context, mediaURL string) (string, error) {
	data, err := c.fetchMedia(ctx, mediaURL)
	if err != nil {
		return "", fmt.Errorf("fetching media: %w", err)
	}

	handle, err := c.UploadMedia(ctx, data)
	if err != nil {
		return "", fmt.Errorf("uploading media: %w", err)
	}
	return handle, nil
}

func (c *XClient) fetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media host returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("media exceeds %d byte limit", maxMediaBytes)
	}
	return data, nil
}

// mediaCategory maps the sniffed content type onto the upload category the
// X API expects. Types outside the supported set are rejected before any
// bytes leave the process.
func mediaCategory(data []byte) (string, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return "", fmt.Errorf("detecting media type: %w", err)
	}

	switch kind.MIME.Value {
	case "image/jpeg", "image/png", "image/webp":
		return "tweet_image", nil
	case "image/gif":
		return "tweet_gif", nil
	case "video/mp4":
		return "tweet_video", nil
	default:
		return "", fmt.Errorf("unsupported media type %q", kind.MIME.Value)
	}
}

func encodeMedia(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
