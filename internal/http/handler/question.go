package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/qna/common/logger"
	"basegraph.app/qna/internal/http/dto"
	"basegraph.app/qna/internal/model"
	"basegraph.app/qna/internal/service"
)

type QuestionHandler struct {
	questionService service.QuestionService
}

func NewQuestionHandler(questionService service.QuestionService) *QuestionHandler {
	useJSONFieldNames()
	return &QuestionHandler{questionService: questionService}
}

// List returns all questions, newest first.
func (h *QuestionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	questions, err := h.questionService.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	sorted := make([]model.Question, len(questions))
	copy(sorted, questions)
	slices.SortStableFunc(sorted, func(a, b model.Question) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	c.JSON(http.StatusOK, dto.ListQuestionsResponse{Questions: sorted})
}

func (h *QuestionHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SubmitQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		respondBindError(c, err)
		return
	}

	qid, err := h.questionService.Submit(ctx, service.SubmitQuestionParams{
		Name:     req.Name,
		Email:    req.Email,
		Question: req.Question,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SubmitQuestionResponse{ID: qid})
}

func (h *QuestionHandler) Reply(c *gin.Context) {
	ctx := c.Request.Context()

	qid, ok := questionIDParam(c)
	if !ok {
		return
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{QuestionID: logger.Ptr(qid)})

	var req dto.PostReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		respondBindError(c, err)
		return
	}

	reply, err := h.questionService.Reply(ctx, service.PostReplyParams{
		QuestionID:     qid,
		Content:        req.Content,
		Author:         req.Author,
		IsOwner:        req.IsOwner,
		ParentAnswerID: req.ParentAnswerID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reply)
}

func (h *QuestionHandler) ToggleLike(c *gin.Context) {
	ctx := c.Request.Context()

	qid, ok := questionIDParam(c)
	if !ok {
		return
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{QuestionID: logger.Ptr(qid)})

	var req dto.ToggleLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		respondBindError(c, err)
		return
	}

	result, err := h.questionService.ToggleLike(ctx, qid, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func questionIDParam(c *gin.Context) (int64, bool) {
	qid, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return 0, false
	}
	return qid, true
}

// respondError maps service errors to responses. Storage details never reach
// the client.
func respondError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": map[string]string{vErr.Field: vErr.Message},
		})
	case errors.Is(err, service.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
