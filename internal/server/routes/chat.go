package routes

import (
	"net/http"

	"github.com/scilab-ai/scilab/backend/internal/server/middleware"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
	"github.com/scilab-ai/scilab/backend/pkg/query"

	"github.com/labstack/echo/v4"
)

// ChatHandler answers a question from the community summaries, building
// them first when none exist yet.
func ChatHandler(c echo.Context) error {
	type chatBody struct {
		Message        string `json:"message" validate:"required"`
		SimilarityTopK int    `json:"similarityTopK" validate:"omitempty,min=1"`
		Trace          bool   `json:"trace"`
	}
	type chatResponse struct {
		Message string                    `json:"message"`
		Answer  string                    `json:"answer"`
		Trace   *query.QueryTraceSnapshot `json:"trace,omitempty"`
	}

	data := new(chatBody)
	if err := c.Bind(data); err != nil {
		return detail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return detail(c, http.StatusBadRequest, "message is required")
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	logger.Info("[Server] Received chat request")

	if !app.Store.HasCommunities() {
		logger.Info("[Server] No community summaries found, building communities")
		if err := app.Store.BuildCommunities(ctx); err != nil {
			logger.Error("[Server] Chat failed", "err", err)
			app.Metrics.Chat(false)
			return detail(c, http.StatusInternalServerError, "Chat failed: "+err.Error())
		}
	}

	var trace *query.QueryTrace
	var tracer query.Tracer
	if data.Trace {
		trace = query.NewQueryTrace()
		tracer = trace
	}

	answer, err := app.Engine.AnswerTopK(ctx, data.Message, data.SimilarityTopK, tracer)
	if err != nil {
		logger.Error("[Server] Chat failed", "err", err)
		app.Metrics.Chat(false)
		return detail(c, http.StatusInternalServerError, "Chat failed: "+err.Error())
	}
	app.Metrics.Chat(true)

	res := chatResponse{Message: data.Message, Answer: answer}
	if trace != nil {
		snap := trace.Snapshot()
		res.Trace = &snap
	}
	return c.JSON(http.StatusOK, res)
}
