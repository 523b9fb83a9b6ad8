package inference

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/stage"
)

const testEndpoint = "http://inference.test/predict"

func newMockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	client := New(testEndpoint, 5*time.Second)
	transport := httpmock.NewMockTransport()
	client.http.SetTransport(transport)
	return client, transport
}

var fullResponse = `{
	"dominant": "Maturity",
	"dominantAr": "ناضج",
	"total": 2,
	"time": 0.42,
	"stageCounts": {"Maturity": 2},
	"detections": [
		{"stage": "Maturity", "stageAr": "ناضج", "confidence": 0.92, "bbox": [0.1, 0.1, 0.5, 0.6]},
		{"stage": "Maturity", "confidence": 0.81, "bbox": [0.55, 0.2, 0.9, 0.7]}
	]
}`

func TestClassify(t *testing.T) {
	t.Run("full response", func(t *testing.T) {
		client, transport := newMockedClient(t)
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewStringResponder(http.StatusOK, fullResponse))

		result, err := client.Classify(context.Background(), []byte{0xFF, 0xD8}, "fruit.jpg")
		require.NoError(t, err)

		assert.Equal(t, stage.Maturity, result.Dominant)
		assert.Equal(t, "ناضج", result.DominantLabel)
		assert.Equal(t, 2, result.Total)
		assert.InDelta(t, 0.42, result.ElapsedSeconds, 1e-9)
		require.Len(t, result.Detections, 2)
		assert.InDelta(t, 0.92, result.Detections[0].Confidence, 1e-9)
		assert.InDelta(t, 0.5, result.Detections[0].BBox.X2(), 1e-9)
		require.NoError(t, result.Validate())
	})

	t.Run("summary fields reconstructed when absent", func(t *testing.T) {
		client, transport := newMockedClient(t)
		partial := `{"detections": [
			{"stage": "Bud", "confidence": 0.4, "bbox": [0.1, 0.1, 0.2, 0.2]},
			{"stage": "Flower", "confidence": 0.6, "bbox": [0.3, 0.3, 0.4, 0.4]},
			{"stage": "Flower", "confidence": 0.7, "bbox": [0.5, 0.5, 0.6, 0.6]}
		]}`
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewStringResponder(http.StatusOK, partial))

		result, err := client.Classify(context.Background(), []byte{0xFF, 0xD8}, "fruit.jpg")
		require.NoError(t, err)

		assert.Equal(t, stage.Flower, result.Dominant, "dominant folded from counts")
		assert.Equal(t, stage.Flower.LabelAr(), result.DominantLabel)
		assert.Equal(t, 3, result.Total, "total defaults to detection count")
		assert.Zero(t, result.ElapsedSeconds)
	})

	t.Run("empty body object tolerated", func(t *testing.T) {
		client, transport := newMockedClient(t)
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewStringResponder(http.StatusOK, `{}`))

		result, err := client.Classify(context.Background(), []byte{0xFF, 0xD8}, "fruit.jpg")
		require.NoError(t, err)
		assert.Empty(t, result.Detections)
		assert.Equal(t, stage.Unknown, result.Dominant)
		assert.Zero(t, result.Total)
	})

	t.Run("unknown stage falls back instead of failing", func(t *testing.T) {
		client, transport := newMockedClient(t)
		body := `{"detections": [{"stage": "Cucumber", "confidence": 0.5, "bbox": [0.1, 0.1, 0.2, 0.2]}]}`
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewStringResponder(http.StatusOK, body))

		result, err := client.Classify(context.Background(), []byte{0xFF, 0xD8}, "fruit.jpg")
		require.NoError(t, err)
		require.Len(t, result.Detections, 1)
		assert.Equal(t, stage.Unknown, result.Detections[0].Stage)
		assert.Equal(t, "Cucumber", result.Detections[0].StageAr, "raw identifier shown as label")
	})

	t.Run("non-2xx status is a network failure", func(t *testing.T) {
		client, transport := newMockedClient(t)
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewStringResponder(http.StatusInternalServerError, "model crashed"))

		_, err := client.Classify(context.Background(), []byte{0xFF, 0xD8}, "fruit.jpg")
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	})

	t.Run("malformed body is a bad response", func(t *testing.T) {
		client, transport := newMockedClient(t)
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewStringResponder(http.StatusOK, "<html>not json</html>"))

		_, err := client.Classify(context.Background(), []byte{0xFF, 0xD8}, "fruit.jpg")
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryInferenceResponse))
	})

	t.Run("unreachable backend is a network failure", func(t *testing.T) {
		client, transport := newMockedClient(t)
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewErrorResponder(assert.AnError))

		_, err := client.Classify(context.Background(), []byte{0xFF, 0xD8}, "fruit.jpg")
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	})

	t.Run("empty payload rejected before the network", func(t *testing.T) {
		client, _ := newMockedClient(t)
		_, err := client.Classify(context.Background(), nil, "fruit.jpg")
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy backend", func(t *testing.T) {
		client, transport := newMockedClient(t)
		transport.RegisterResponder(http.MethodGet, "http://inference.test/health",
			httpmock.NewStringResponder(http.StatusOK, `{"status":"ok","model":"loaded"}`))

		assert.NoError(t, client.Health(context.Background()))
	})

	t.Run("unhealthy backend", func(t *testing.T) {
		client, transport := newMockedClient(t)
		transport.RegisterResponder(http.MethodGet, "http://inference.test/health",
			httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

		err := client.Health(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	})
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://x/health", healthURL("http://x/predict"))
	assert.Equal(t, "http://x/api/health", healthURL("http://x/api"))
}
