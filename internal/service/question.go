package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"basegraph.app/qna/common/id"
	"basegraph.app/qna/common/logger"
	"basegraph.app/qna/internal/domain"
	"basegraph.app/qna/internal/lock"
	"basegraph.app/qna/internal/model"
	"basegraph.app/qna/internal/store"
)

// collectionLockKey guards the single collection document.
const collectionLockKey = "collection"

type SubmitQuestionParams struct {
	Name     string
	Email    string
	Question string
}

type PostReplyParams struct {
	QuestionID     int64
	Content        string
	Author         string
	IsOwner        bool
	ParentAnswerID *int64
}

type QuestionService interface {
	Submit(ctx context.Context, params SubmitQuestionParams) (int64, error)
	List(ctx context.Context) ([]model.Question, error)
	Reply(ctx context.Context, params PostReplyParams) (*model.Reply, error)
	ToggleLike(ctx context.Context, questionID int64, userID string) (model.LikeResult, error)
}

// CollectionStore is the part of the storage engine the service needs.
type CollectionStore interface {
	Load(ctx context.Context) *model.Collection
	Save(ctx context.Context, c *model.Collection) error
}

type questionService struct {
	store  CollectionStore
	locker lock.Locker
	now    func() time.Time
}

func NewQuestionService(s CollectionStore, locker lock.Locker) QuestionService {
	if locker == nil {
		locker = lock.NewNoop()
	}
	return &questionService{
		store:  s,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *questionService) Submit(ctx context.Context, params SubmitQuestionParams) (int64, error) {
	text := strings.TrimSpace(params.Question)
	if utf8.RuneCountInString(text) < model.MinQuestionLength {
		return 0, invalid("question", "must be at least %d characters", model.MinQuestionLength)
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = model.DefaultAuthor
	}

	q := model.Question{
		ID:        id.New(),
		Name:      name,
		Email:     strings.TrimSpace(params.Email),
		Question:  text,
		Timestamp: s.now(),
		Status:    model.QuestionStatusPending,
		LikedBy:   []string{},
		Answers:   []model.Reply{},
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{QuestionID: logger.Ptr(q.ID)})

	err := s.mutate(ctx, func(c *model.Collection) error {
		c.Questions = append(c.Questions, q)
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to submit question", "error", err)
		return 0, fmt.Errorf("submitting question: %w", err)
	}

	slog.InfoContext(ctx, "question submitted")
	return q.ID, nil
}

// List returns the stored questions in insertion order. Load never fails, so
// neither does List; the error return is kept for the interface.
func (s *questionService) List(ctx context.Context) ([]model.Question, error) {
	return s.store.Load(ctx).Questions, nil
}

func (s *questionService) Reply(ctx context.Context, params PostReplyParams) (*model.Reply, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}

	author := strings.TrimSpace(params.Author)
	if author == "" {
		author = model.DefaultAuthor
	}

	reply := model.Reply{
		ID:             id.New(),
		Content:        content,
		Author:         author,
		IsOwner:        params.IsOwner,
		Date:           s.now(),
		Replies:        []model.Reply{},
		ParentAnswerID: params.ParentAnswerID,
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QuestionID: logger.Ptr(params.QuestionID),
		ReplyID:    logger.Ptr(reply.ID),
	})

	var nested bool
	err := s.mutate(ctx, func(c *model.Collection) error {
		q, ok := c.FindQuestion(params.QuestionID)
		if !ok {
			return ErrQuestionNotFound
		}

		var res domain.AttachResult
		q.Answers, res = domain.AttachOrAppend(q.Answers, params.ParentAnswerID, reply)
		nested = res.AttachedAsChild

		if reply.IsOwner && !nested {
			q.Status = model.QuestionStatusAnswered
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			return nil, err
		}
		slog.ErrorContext(ctx, "failed to post reply", "error", err)
		return nil, fmt.Errorf("posting reply: %w", err)
	}

	if params.ParentAnswerID != nil && !nested {
		slog.InfoContext(ctx, "parent reply not found, reply added at top level", "parent_answer_id", *params.ParentAnswerID)
	}
	slog.InfoContext(ctx, "reply posted", "nested", nested)
	return &reply, nil
}

func (s *questionService) ToggleLike(ctx context.Context, questionID int64, userID string) (model.LikeResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.LikeResult{}, invalid("userId", "must not be empty")
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{QuestionID: logger.Ptr(questionID)})

	var result model.LikeResult
	err := s.mutate(ctx, func(c *model.Collection) error {
		q, ok := c.FindQuestion(questionID)
		if !ok {
			return ErrQuestionNotFound
		}
		result = domain.ToggleLike(q, userID)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			return model.LikeResult{}, err
		}
		slog.ErrorContext(ctx, "failed to toggle like", "error", err)
		return model.LikeResult{}, fmt.Errorf("toggling like: %w", err)
	}

	return result, nil
}

// mutate runs one locked load, apply, save cycle. Nothing is saved when apply
// returns an error.
func (s *questionService) mutate(ctx context.Context, apply func(*model.Collection) error) error {
	release, err := s.locker.Acquire(ctx, collectionLockKey)
	if err != nil {
		return fmt.Errorf("acquiring collection lock: %w", err)
	}
	defer release()

	c := s.store.Load(ctx)
	if err := apply(c); err != nil {
		return err
	}
	return s.store.Save(ctx, c)
}

var _ CollectionStore = (*store.Engine)(nil)
