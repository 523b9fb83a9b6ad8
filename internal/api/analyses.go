package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/detection"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/history"
	"github.com/redharvest/redharvest-go/internal/render"
	"github.com/redharvest/redharvest-go/internal/security"
	"github.com/redharvest/redharvest-go/internal/stage"
)

// RecordResponse is the JSON shape of one saved analysis.
type RecordResponse struct {
	ID             string          `json:"id"`
	ImageURL       string          `json:"imageUrl"`
	Dominant       string          `json:"dominant"`
	DominantAr     string          `json:"dominantAr"`
	Confidence     float64         `json:"confidence"`
	Total          int             `json:"total"`
	ElapsedSeconds float64         `json:"time"`
	Detections     []DetectionJSON `json:"detections"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// DetectionJSON is one detection inside a record response.
type DetectionJSON struct {
	Stage      string     `json:"stage"`
	StageAr    string     `json:"stageAr"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

func (c *Controller) recordResponse(record *datastore.AnalysisRecord) RecordResponse {
	resp := RecordResponse{
		ID:             record.ID,
		ImageURL:       c.blobs.URL(record.ImageLocation),
		Dominant:       record.Dominant,
		DominantAr:     record.DominantLabel,
		Confidence:     record.Confidence,
		Total:          record.Total,
		ElapsedSeconds: record.ElapsedSeconds,
		CreatedAt:      record.CreatedAt,
		Detections:     make([]DetectionJSON, 0, len(record.Detections)),
	}
	for i := range record.Detections {
		det := &record.Detections[i]
		resp.Detections = append(resp.Detections, DetectionJSON{
			Stage:      det.Stage,
			StageAr:    det.StageAr,
			Confidence: det.Confidence,
			BBox:       [4]float64{det.X1, det.Y1, det.X2, det.Y2},
		})
	}
	return resp
}

// readUploadedImage pulls the "image" multipart file out of the request.
func readUploadedImage(ctx echo.Context) (data []byte, fileName string, err error) {
	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		return nil, "", errors.Newf("request carries no image file").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	defer func() { _ = file.Close() }()

	data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Build()
	}
	return data, fileHeader.Filename, nil
}

// AnalyzeImage runs the uploaded image through the inference backend.
// With ?overlay=true the response is the rendered PNG instead of JSON.
func (c *Controller) AnalyzeImage(ctx echo.Context) error {
	userID := security.UserID(ctx)
	start := time.Now()

	imageData, fileName, err := readUploadedImage(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "image file is required", http.StatusBadRequest)
	}

	if _, err := c.views.SelectImage(userID, fileName); err != nil {
		return c.HandleError(ctx, err, "another analysis is already running", http.StatusConflict)
	}
	if _, err := c.views.StartAnalysis(userID); err != nil {
		return c.HandleError(ctx, err, "analysis cannot start", http.StatusConflict)
	}

	result, err := c.inference.Classify(ctx.Request().Context(), imageData, fileName)
	if err != nil {
		_, _ = c.views.FailAnalysis(userID, err.Error())
		if c.metrics != nil {
			c.metrics.RecordAnalysis(false, 0, 0)
			c.metrics.RecordInferenceFailure(err)
		}
		switch {
		case errors.IsCategory(err, errors.CategoryValidation):
			return c.HandleError(ctx, err, "invalid image payload", http.StatusBadRequest)
		case errors.IsCategory(err, errors.CategoryInferenceResponse):
			return c.HandleError(ctx, err, "inference backend returned an unusable response", http.StatusBadGateway)
		default:
			return c.HandleError(ctx, err, "inference backend unreachable", http.StatusBadGateway)
		}
	}

	if _, err := c.views.CompleteAnalysis(userID, result); err != nil {
		return c.HandleError(ctx, err, "analysis state lost", http.StatusConflict)
	}
	if c.metrics != nil {
		c.metrics.RecordAnalysis(true, time.Since(start).Seconds(), len(result.Detections))
	}

	if ctx.QueryParam("overlay") == "true" {
		return c.respondOverlay(ctx, imageData, result)
	}
	return ctx.JSON(http.StatusOK, result)
}

// respondOverlay renders the detections onto the image and streams it back
// as PNG.
func (c *Controller) respondOverlay(ctx echo.Context, imageData []byte, result *detection.Result) error {
	img, err := render.DecodeBytes(imageData)
	if err != nil {
		return c.HandleError(ctx, err, "uploaded image cannot be decoded", http.StatusBadRequest)
	}

	composed := render.Overlay(img, result.Detections)
	ctx.Response().Header().Set(echo.HeaderContentType, "image/png")
	ctx.Response().WriteHeader(http.StatusOK)
	if err := render.EncodePNG(ctx.Response(), composed); err != nil {
		c.apiLogger.Error("overlay encode failed", "error", err)
		return err
	}
	return nil
}

// SaveAnalysis persists the current result together with its image. The
// image goes to blob storage first; if the record write fails afterwards
// the blob is removed again so no orphan files pile up.
func (c *Controller) SaveAnalysis(ctx echo.Context) error {
	userID := security.UserID(ctx)
	reqCtx := ctx.Request().Context()

	imageData, fileName, err := readUploadedImage(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "image file is required", http.StatusBadRequest)
	}

	result, err := c.resolveResult(ctx, userID)
	if err != nil {
		return c.HandleError(ctx, err, "no analysis result to save", http.StatusBadRequest)
	}
	if err := result.Validate(); err != nil {
		return c.HandleError(ctx, err, "analysis result is invalid", http.StatusBadRequest)
	}

	location, err := c.blobs.Upload(reqCtx, userID, fileName, imageData)
	if err != nil {
		return c.HandleError(ctx, err, "failed to store image", http.StatusInternalServerError)
	}

	record := datastore.NewAnalysisRecord(userID, location, result)
	if err := c.DS.Save(reqCtx, record); err != nil {
		// Compensate: the image must not outlive the failed record.
		if removeErr := c.blobs.Remove(reqCtx, location); removeErr != nil {
			c.apiLogger.Error("orphaned blob after failed save",
				"location", location,
				"error", removeErr)
		}
		return c.HandleError(ctx, err, "failed to save analysis", http.StatusInternalServerError)
	}

	if _, err := c.views.MarkSaved(userID, record.ID, location); err != nil {
		// Saving straight from a fresh session is fine, the view just
		// does not track it.
		c.apiLogger.Debug("save outside analysis flow", "user_id", userID)
	}
	if c.metrics != nil {
		c.metrics.RecordsSaved.Inc()
	}

	resp := c.recordResponse(record)
	return ctx.JSON(http.StatusCreated, resp)
}

// resolveResult takes the result from the request's "analysis" field, or
// falls back to the one the session just displayed.
func (c *Controller) resolveResult(ctx echo.Context, userID string) (*detection.Result, error) {
	if payload := ctx.FormValue("analysis"); payload != "" {
		var result detection.Result
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, errors.New(err).
				Component("api").
				Category(errors.CategoryValidation).
				Context("field", "analysis").
				Build()
		}
		return &result, nil
	}

	view := c.views.Get(userID)
	if view.Result == nil {
		return nil, errors.Newf("session has no analysis result").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return view.Result, nil
}

// GetHistory returns the signed-in user's saved analyses, filtered and
// paged twelve at a time. Pages are cumulative the way the history screen
// extends: page 2 returns twenty-four records.
func (c *Controller) GetHistory(ctx echo.Context) error {
	userID := security.UserID(ctx)

	records, err := c.DS.GetHistory(ctx.Request().Context(), userID, 0, 0)
	if err != nil {
		return c.HandleError(ctx, err, "failed to load history", http.StatusInternalServerError)
	}

	engine := history.New(records)

	filter := history.Filter{
		Query:  ctx.QueryParam("query"),
		Window: history.ParseWindow(ctx.QueryParam("window")),
	}
	if stageParam := ctx.QueryParam("stage"); stageParam != "" {
		kind := stage.Parse(stageParam)
		if kind == stage.Unknown {
			return c.HandleError(ctx, errors.Newf("unknown stage %q", stageParam).Build(),
				"unknown stage filter", http.StatusBadRequest)
		}
		filter.Stage = &kind
	}
	engine.SetFilter(filter)

	page := 1
	if p, err := strconv.Atoi(ctx.QueryParam("page")); err == nil && p > 1 {
		page = p
	}
	for engine.Page() < page && engine.LoadMore() {
	}

	visible := engine.Visible()
	items := make([]RecordResponse, 0, len(visible))
	for i := range visible {
		items = append(items, c.recordResponse(&visible[i]))
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"records": items,
		"page":    engine.Page(),
		"hasMore": engine.HasMore(),
		"total":   len(engine.Matching()),
	})
}

// GetAnalysis returns one saved analysis.
func (c *Controller) GetAnalysis(ctx echo.Context) error {
	userID := security.UserID(ctx)

	record, err := c.DS.Get(ctx.Request().Context(), userID, ctx.Param("id"))
	if err != nil {
		return c.storeError(ctx, err, "failed to load analysis")
	}
	return ctx.JSON(http.StatusOK, c.recordResponse(record))
}

// DeleteAnalysis removes a saved analysis and its stored image.
func (c *Controller) DeleteAnalysis(ctx echo.Context) error {
	userID := security.UserID(ctx)
	reqCtx := ctx.Request().Context()
	id := ctx.Param("id")

	record, err := c.DS.Get(reqCtx, userID, id)
	if err != nil {
		return c.storeError(ctx, err, "failed to load analysis")
	}

	if err := c.DS.Delete(reqCtx, userID, id); err != nil {
		return c.storeError(ctx, err, "failed to delete analysis")
	}

	if err := c.blobs.Remove(reqCtx, record.ImageLocation); err != nil {
		c.apiLogger.Warn("record deleted but blob removal failed",
			"location", record.ImageLocation,
			"error", err)
	}
	if c.metrics != nil {
		c.metrics.RecordsDeleted.Inc()
	}

	return ctx.NoContent(http.StatusNoContent)
}

// storeError maps persistence errors onto HTTP status codes.
func (c *Controller) storeError(ctx echo.Context, err error, message string) error {
	switch {
	case errors.IsNotFound(err):
		return c.HandleError(ctx, err, "analysis not found", http.StatusNotFound)
	case errors.IsForbidden(err):
		return c.HandleError(ctx, err, "analysis belongs to another user", http.StatusForbidden)
	default:
		return c.HandleError(ctx, err, message, http.StatusInternalServerError)
	}
}
