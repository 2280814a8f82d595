package dto

import "basegraph.app/qna/internal/model"

type SubmitQuestionRequest struct {
	Name     string `json:"name" binding:"max=255"`
	Email    string `json:"email" binding:"max=255"`
	Question string `json:"question" binding:"required,max=10000"`
}

type SubmitQuestionResponse struct {
	ID int64 `json:"id"`
}

type PostReplyRequest struct {
	Content        string `json:"content" binding:"required,max=10000"`
	Author         string `json:"author" binding:"max=255"`
	IsOwner        bool   `json:"isOwner"`
	ParentAnswerID *int64 `json:"parentAnswerId"`
}

type ToggleLikeRequest struct {
	UserID string `json:"userId" binding:"required,max=255"`
}

// ListQuestionsResponse mirrors the persisted collection shape.
type ListQuestionsResponse struct {
	Questions []model.Question `json:"questions"`
}
