// Package inference provides the client for the remote classification
// backend. It uploads an image as multipart form data and parses the
// detection response with defensive defaults, since the backend may omit
// any of the summary fields.
package inference

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/redharvest/redharvest-go/internal/detection"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/httpclient"
	"github.com/redharvest/redharvest-go/internal/logging"
	"github.com/redharvest/redharvest-go/internal/stage"
)

// imageField is the multipart field name the backend expects.
const imageField = "image"

// maxResponseBytes caps how much of the response body is read.
const maxResponseBytes = 8 << 20

// Client talks to the remote YOLO predict endpoint.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *httpclient.Client
	logger   *slog.Logger
}

// New creates an inference client for the given predict endpoint.
func New(endpoint string, timeout time.Duration) *Client {
	cfg := httpclient.DefaultConfig()
	if timeout > 0 {
		cfg.DefaultTimeout = timeout
	}

	logger := logging.ForService("inference")
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint: endpoint,
		timeout:  cfg.DefaultTimeout,
		http:     httpclient.New(&cfg),
		logger:   logger,
	}
}

// Endpoint returns the configured predict URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Classify uploads the image bytes and returns the parsed analysis result.
// Non-2xx responses fail with a network-category error, malformed bodies
// with an inference-response error. There is no retry; the caller decides.
func (c *Client) Classify(ctx context.Context, imageData []byte, fileName string) (*detection.Result, error) {
	if len(imageData) == 0 {
		return nil, errors.Newf("empty image payload").
			Component("inference").
			Category(errors.CategoryValidation).
			Build()
	}
	if fileName == "" {
		fileName = "image.jpg"
	}

	start := time.Now()
	resp, err := c.http.PostFile(ctx, c.endpoint, imageField, fileName, imageData)
	if err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryNetwork).
			NetworkContext(c.endpoint, c.timeout).
			Timing("classify", time.Since(start)).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, errors.Newf("inference backend returned status %d", resp.StatusCode).
			Component("inference").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			NetworkContext(c.endpoint, c.timeout).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryNetwork).
			NetworkContext(c.endpoint, c.timeout).
			Build()
	}

	result, err := parseResult(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("classification completed",
		"detections", len(result.Detections),
		"dominant", result.Dominant.String(),
		"elapsed_ms", time.Since(start).Milliseconds())

	return result, nil
}

// Health probes the backend's liveness endpoint next to the predict URL.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.Get(ctx, healthURL(c.endpoint))
	if err != nil {
		return errors.New(err).
			Component("inference").
			Category(errors.CategoryNetwork).
			NetworkContext(c.endpoint, c.timeout).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("inference backend health returned status %d", resp.StatusCode).
			Component("inference").
			Category(errors.CategoryNetwork).
			Build()
	}
	return nil
}

// SetTransport swaps the underlying HTTP transport. Tests use it to mock
// the backend.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

// parseResult reads the backend response. Every field is optional: absent
// summary fields are reconstructed from the detection list the way the
// backend itself computes them.
func parseResult(body []byte) (*detection.Result, error) {
	root, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, errors.New(err).
			Component("inference").
			Category(errors.CategoryInferenceResponse).
			Context("body_bytes", len(body)).
			Build()
	}

	result := &detection.Result{}

	if dets, err := root.GetObjectArray("detections"); err == nil {
		result.Detections = make([]detection.Detection, 0, len(dets))
		for _, det := range dets {
			item := detection.Detection{}

			if s, err := det.GetString("stage"); err == nil {
				item.Stage = stage.Parse(s)
				item.StageAr = stage.DisplayLabel(s)
			}
			if ar, err := det.GetString("stageAr"); err == nil {
				item.StageAr = ar
			}
			if conf, err := det.GetFloat64("confidence"); err == nil {
				item.Confidence = conf
			}
			if coords, err := det.GetValueArray("bbox"); err == nil && len(coords) == 4 {
				for i, v := range coords {
					if f, err := v.Float64(); err == nil {
						item.BBox[i] = f
					}
				}
			}

			result.Detections = append(result.Detections, item)
		}
	}

	if dominant, err := root.GetString("dominant"); err == nil {
		result.Dominant = stage.Parse(dominant)
		result.DominantLabel = stage.DisplayLabel(dominant)
	} else {
		result.Dominant = detection.DominantFromCounts(result.Detections)
		result.DominantLabel = result.Dominant.LabelAr()
	}
	if dominantAr, err := root.GetString("dominantAr"); err == nil {
		result.DominantLabel = dominantAr
	}

	if total, err := root.GetInt64("total"); err == nil && total >= 0 {
		result.Total = int(total)
	} else {
		result.Total = len(result.Detections)
	}

	if elapsed, err := root.GetFloat64("time"); err == nil && elapsed >= 0 {
		result.ElapsedSeconds = elapsed
	}

	return result, nil
}

// healthURL derives the /health URL from the predict endpoint.
func healthURL(endpoint string) string {
	const predictSuffix = "/predict"
	if len(endpoint) > len(predictSuffix) && endpoint[len(endpoint)-len(predictSuffix):] == predictSuffix {
		return endpoint[:len(endpoint)-len(predictSuffix)] + "/health"
	}
	return endpoint + "/health"
}
