package routes

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/scilab-ai/scilab/backend/internal/ingest"
	"github.com/scilab-ai/scilab/backend/internal/queue"
	"github.com/scilab-ai/scilab/backend/internal/server/middleware"
	"github.com/scilab-ai/scilab/backend/internal/storage"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// UploadPDFHandler stores a PDF until it is ingested. Uploading again under
// the same document_id replaces the pending file.
func UploadPDFHandler(c echo.Context) error {
	type uploadResponse struct {
		DocumentID string `json:"documentId"`
		Filename   string `json:"filename"`
		SizeBytes  int    `json:"sizeBytes"`
		Status     string `json:"status"`
		Message    string `json:"message"`
	}

	filename, content, err := readUpload(c)
	if err != nil {
		return detail(c, http.StatusBadRequest, "Missing file")
	}
	if filename == "" || !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return detail(c, http.StatusBadRequest, "Only PDF files are supported")
	}

	app := c.(*middleware.AppContext).App
	up, err := app.Pipeline.Registry().Save(c.QueryParam("document_id"), filename, content)
	if err != nil {
		logger.Error("[Server] Failed to store upload", "err", err)
		return detail(c, http.StatusInternalServerError, "Failed to store upload")
	}

	return c.JSON(http.StatusOK, uploadResponse{
		DocumentID: up.DocumentID,
		Filename:   up.Filename,
		SizeBytes:  up.SizeBytes,
		Status:     "uploaded",
		Message:    "PDF uploaded successfully. Call /ingest to process into Knowledge Graph.",
	})
}

// IngestHandler runs an uploaded document through the graph pipeline, or
// hands it to the worker when async is requested and a queue is configured.
func IngestHandler(c echo.Context) error {
	type ingestBody struct {
		DocumentID           string `json:"documentId" validate:"required"`
		DoPictureDescription bool   `json:"doPictureDescription"`
		DoFormulaEnrichment  bool   `json:"doFormulaEnrichment"`
		MaxTripletsPerChunk  *int   `json:"maxTripletsPerChunk" validate:"omitempty,min=1"`
		Async                bool   `json:"async"`
	}
	type ingestResponse struct {
		DocumentID     string `json:"documentId"`
		Status         string `json:"status"`
		ChunkCount     int    `json:"chunkCount"`
		TripletCount   int    `json:"tripletCount"`
		CommunityCount int    `json:"communityCount"`
		Message        string `json:"message"`
	}

	data := new(ingestBody)
	if err := c.Bind(data); err != nil {
		return detail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return detail(c, http.StatusBadRequest, "Invalid request body")
	}

	opts := ingest.Options{
		PictureDescription: data.DoPictureDescription,
		FormulaEnrichment:  data.DoFormulaEnrichment,
	}
	if data.MaxTripletsPerChunk != nil {
		opts.MaxTripletsPerChunk = *data.MaxTripletsPerChunk
	}

	app := c.(*middleware.AppContext).App
	if data.Async && app.AsyncIngest() {
		return enqueueIngest(c, data.DocumentID, opts)
	}

	res, err := app.Pipeline.Ingest(c.Request().Context(), data.DocumentID, opts)
	if err != nil {
		if notFound := ingestNotFound(data.DocumentID, err); notFound != "" {
			return detail(c, http.StatusNotFound, notFound)
		}
		logger.Error("[Server] Ingestion failed", "document_id", data.DocumentID, "err", err)
		app.Metrics.IngestFailed()
		return detail(c, http.StatusInternalServerError, "Ingestion failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, ingestResponse{
		DocumentID:     res.DocumentID,
		Status:         "success",
		ChunkCount:     res.ChunkCount,
		TripletCount:   res.TripletCount,
		CommunityCount: res.CommunityCount,
		Message:        "Document successfully ingested into Knowledge Graph",
	})
}

func ingestNotFound(id string, err error) string {
	switch {
	case errors.Is(err, ingest.ErrDocumentNotFound):
		return fmt.Sprintf("Document '%s' not found. Upload it first via /pdf endpoint.", id)
	case errors.Is(err, ingest.ErrFileMissing):
		return "Document file not found. Please re-upload."
	default:
		return ""
	}
}

func enqueueIngest(c echo.Context, id string, opts ingest.Options) error {
	type queuedResponse struct {
		DocumentID    string `json:"documentId"`
		Status        string `json:"status"`
		CorrelationID string `json:"correlationId"`
		Message       string `json:"message"`
	}

	app := c.(*middleware.AppContext).App
	registry := app.Pipeline.Registry()
	path, err := registry.Path(id)
	if err != nil {
		return detail(c, http.StatusNotFound, ingestNotFound(id, err))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return detail(c, http.StatusNotFound, ingestNotFound(id, ingest.ErrFileMissing))
	}

	ctx := c.Request().Context()
	key := storage.DocumentKey(id, path)
	if err := storage.PutFile(ctx, app.S3, app.S3Bucket, key, bytes.NewReader(content)); err != nil {
		logger.Error("[Server] Failed to store document for worker", "document_id", id, "err", err)
		return detail(c, http.StatusInternalServerError, "Ingestion failed: "+err.Error())
	}

	job, err := queue.PublishIngestJob(app.Queue, queue.IngestJobMsg{
		DocumentID:          id,
		ObjectKey:           key,
		Filename:            filepath.Base(path),
		MaxTripletsPerChunk: opts.MaxTripletsPerChunk,
		PictureDescription:  opts.PictureDescription,
		FormulaEnrichment:   opts.FormulaEnrichment,
	})
	if err != nil {
		logger.Error("[Server] Failed to queue ingest job", "document_id", id, "err", err)
		if delErr := storage.DeleteFile(ctx, app.S3, app.S3Bucket, key); delErr != nil {
			logger.Warn("[Server] Failed to remove stored document", "key", key, "err", delErr)
		}
		return detail(c, http.StatusInternalServerError, "Ingestion failed: "+err.Error())
	}

	registry.Remove(id, path)
	logger.Info("[Server] Queued ingest job", "document_id", id, "correlation_id", job.CorrelationID)

	return c.JSON(http.StatusAccepted, queuedResponse{
		DocumentID:    id,
		Status:        "queued",
		CorrelationID: job.CorrelationID,
		Message:       "Document queued for ingestion",
	})
}
