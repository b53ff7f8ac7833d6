package routes

import (
	"io"
	"net/http"
	"strings"

	"github.com/scilab-ai/scilab/backend/internal/server/middleware"
	"github.com/scilab-ai/scilab/backend/pkg/loader"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func detail(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorResponse{Detail: msg})
}

// readUpload returns the multipart "file" field.
func readUpload(c echo.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, err
	}
	src, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, content, nil
}

// ParsePaperHandler returns the plain text of an uploaded PDF.
func ParsePaperHandler(c echo.Context) error {
	type parseResponse struct {
		ParsedText string `json:"parsedText"`
	}

	_, content, err := readUpload(c)
	if err != nil {
		return detail(c, http.StatusBadRequest, "Missing file")
	}
	if !loader.IsPDF(content) {
		return detail(c, http.StatusBadRequest, "Invalid PDF file")
	}

	app := c.(*middleware.AppContext).App
	text, err := app.Parser.ParseText(c.Request().Context(), content)
	if err != nil {
		logger.Error("[Server] Failed to parse paper", "err", err)
		return detail(c, http.StatusInternalServerError, "Failed to parse document: "+err.Error())
	}

	return c.JSON(http.StatusOK, parseResponse{ParsedText: text})
}

// AutoTagHandler suggests research tags for already parsed paper text.
func AutoTagHandler(c echo.Context) error {
	type autoTagBody struct {
		ParsedText   string   `json:"parsedText" validate:"required,min=100"`
		ExistingTags []string `json:"existingTags"`
	}
	type autoTagResponse struct {
		Tags []string `json:"tags"`
	}

	data := new(autoTagBody)
	if err := c.Bind(data); err != nil {
		return detail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return detail(c, http.StatusBadRequest, "parsedText must be at least 100 characters")
	}

	app := c.(*middleware.AppContext).App
	chunks, err := app.Chunker(strings.TrimSpace(data.ParsedText), "")
	if err != nil {
		logger.Error("[Server] Failed to chunk paper", "err", err)
		return detail(c, http.StatusInternalServerError, "Failed to auto-tag document: "+err.Error())
	}

	ctx := c.Request().Context()
	res := app.Tagger.Tag(ctx, chunks, data.ExistingTags)
	if err := ctx.Err(); err != nil {
		return detail(c, http.StatusInternalServerError, "Failed to auto-tag document: "+err.Error())
	}

	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	return c.JSON(http.StatusOK, autoTagResponse{Tags: tags})
}
