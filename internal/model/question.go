package model

import (
	"time"
)

type QuestionStatus string

const (
	QuestionStatusPending  QuestionStatus = "pending"
	QuestionStatusAnswered QuestionStatus = "answered"
)

const (
	// DefaultAuthor is used when a question or reply is submitted without a name.
	DefaultAuthor = "Anonymous"

	// MinQuestionLength is the minimum trimmed length of a question text, in runes.
	MinQuestionLength = 5
)

// Collection is the whole persisted document. It is always read and written
// as one unit.
type Collection struct {
	Questions []Question `json:"questions"`

	// Revision identifies where the collection was loaded from. Never persisted.
	Revision Revision `json:"-"`
}

// Revision is the version token a backend handed out on fetch, tagged with
// the backend that issued it.
type Revision struct {
	Backend string
	Token   string
}

type Question struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email,omitempty"`
	Question  string         `json:"question"`
	Timestamp time.Time      `json:"timestamp"`
	Status    QuestionStatus `json:"status"`
	Likes     int            `json:"likes"`
	LikedBy   []string       `json:"likedBy"`
	Answers   []Reply        `json:"answers"`
}

// Reply is a node in a question's reply forest.
type Reply struct {
	ID      int64     `json:"id"`
	Content string    `json:"content"`
	Author  string    `json:"author"`
	IsOwner bool      `json:"isOwner"`
	Date    time.Time `json:"date"`
	Replies []Reply   `json:"replies"`

	// ParentAnswerID records the parent requested at submission time.
	// Traversal never reads it.
	ParentAnswerID *int64 `json:"parentAnswerId,omitempty"`
}

type LikeResult struct {
	Likes   int  `json:"likes"`
	IsLiked bool `json:"isLiked"`
}

func NewCollection() *Collection {
	return &Collection{Questions: []Question{}}
}

// FindQuestion returns a pointer into c.Questions so callers can mutate in place.
func (c *Collection) FindQuestion(id int64) (*Question, bool) {
	for i := range c.Questions {
		if c.Questions[i].ID == id {
			return &c.Questions[i], true
		}
	}
	return nil, false
}

// Normalize repairs legacy or hand-edited documents: nil slices become empty,
// likedBy is de-duplicated, likes is re-derived from likedBy and a missing
// status defaults to pending. The reply forest is walked iteratively.
func (c *Collection) Normalize() {
	if c.Questions == nil {
		c.Questions = []Question{}
	}

	for i := range c.Questions {
		q := &c.Questions[i]
		q.LikedBy = dedupe(q.LikedBy)
		q.Likes = len(q.LikedBy)
		if q.Status == "" {
			q.Status = QuestionStatusPending
		}
		if q.Answers == nil {
			q.Answers = []Reply{}
		}

		stack := make([]*Reply, 0, len(q.Answers))
		for j := range q.Answers {
			stack = append(stack, &q.Answers[j])
		}
		for len(stack) > 0 {
			r := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if r.Replies == nil {
				r.Replies = []Reply{}
			}
			for j := range r.Replies {
				stack = append(stack, &r.Replies[j])
			}
		}
	}
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
