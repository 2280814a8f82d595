package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/qna/common/id"
	"basegraph.app/qna/internal/lock"
	"basegraph.app/qna/internal/model"
	"basegraph.app/qna/internal/service"
	"basegraph.app/qna/internal/store"
)

type failingBackend struct{ name string }

func (b failingBackend) Name() string { return b.name }

func (b failingBackend) Fetch(context.Context) (store.Blob, error) {
	return store.Blob{}, errors.New("unreachable")
}

func (b failingBackend) Store(context.Context, store.Blob) error {
	return errors.New("unreachable")
}

// readOnlyEmptyBackend has no collection and refuses every write, like a
// GitLab file that does not exist yet behind a read-only token.
type readOnlyEmptyBackend struct{}

func (readOnlyEmptyBackend) Name() string { return "remote" }

func (readOnlyEmptyBackend) Fetch(context.Context) (store.Blob, error) {
	return store.Blob{}, store.ErrNotFound
}

func (readOnlyEmptyBackend) Store(context.Context, store.Blob) error {
	return errors.New("403 forbidden")
}

var _ = Describe("QuestionService", func() {
	var (
		ctx    context.Context
		engine *store.Engine
		svc    service.QuestionService
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		dir := GinkgoT().TempDir()
		primary, err := store.NewLocalBackend(filepath.Join(dir, "data", "questions.json"))
		Expect(err).NotTo(HaveOccurred())
		fallback, err := store.NewFallbackBackend(filepath.Join(dir, "tmp", "questions.json"))
		Expect(err).NotTo(HaveOccurred())

		engine, err = store.NewEngine([]store.Backend{primary, fallback}, time.Second)
		Expect(err).NotTo(HaveOccurred())
		_, err = engine.Initialize(ctx)
		Expect(err).NotTo(HaveOccurred())

		svc = service.NewQuestionService(engine, lock.NewLocal())
	})

	submit := func(text string) int64 {
		qid, err := svc.Submit(ctx, service.SubmitQuestionParams{Name: "Sara", Question: text})
		Expect(err).NotTo(HaveOccurred())
		return qid
	}

	onlyQuestion := func() model.Question {
		qs, err := svc.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(qs).To(HaveLen(1))
		return qs[0]
	}

	Describe("Submit", func() {
		It("stores a pending question with empty likes and answers", func() {
			qid := submit("Why pray five times a day?")
			Expect(qid).To(BeNumerically(">", 0))

			q := onlyQuestion()
			Expect(q.ID).To(Equal(qid))
			Expect(q.Name).To(Equal("Sara"))
			Expect(q.Status).To(Equal(model.QuestionStatusPending))
			Expect(q.Likes).To(BeZero())
			Expect(q.LikedBy).To(BeEmpty())
			Expect(q.Answers).To(BeEmpty())
			Expect(q.Timestamp).NotTo(BeZero())
		})

		It("trims input and defaults a blank name", func() {
			_, err := svc.Submit(ctx, service.SubmitQuestionParams{
				Name:     "   ",
				Email:    "  sara@example.com ",
				Question: "   What is zakat?  ",
			})
			Expect(err).NotTo(HaveOccurred())

			q := onlyQuestion()
			Expect(q.Name).To(Equal(model.DefaultAuthor))
			Expect(q.Email).To(Equal("sara@example.com"))
			Expect(q.Question).To(Equal("What is zakat?"))
		})

		It("rejects a short question and stores nothing", func() {
			_, err := svc.Submit(ctx, service.SubmitQuestionParams{Name: "Sara", Question: "  Hi  "})

			var vErr *service.ValidationError
			Expect(errors.As(err, &vErr)).To(BeTrue())
			Expect(vErr.Field).To(Equal("question"))
			Expect(vErr.Message).To(ContainSubstring("5"))

			qs, err := svc.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(qs).To(BeEmpty())
		})

		It("counts characters rather than bytes", func() {
			_, err := svc.Submit(ctx, service.SubmitQuestionParams{Question: "ما؟"})
			var vErr *service.ValidationError
			Expect(errors.As(err, &vErr)).To(BeTrue())

			_, err = svc.Submit(ctx, service.SubmitQuestionParams{Question: "ما هو"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps insertion order", func() {
			first := submit("First question")
			second := submit("Second question")

			qs, err := svc.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(qs).To(HaveLen(2))
			Expect(qs[0].ID).To(Equal(first))
			Expect(qs[1].ID).To(Equal(second))
		})

		It("loses no submissions under concurrency when locked", func() {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := svc.Submit(ctx, service.SubmitQuestionParams{Question: "Concurrent question"})
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			qs, err := svc.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(qs).To(HaveLen(10))
		})
	})

	Describe("Reply", func() {
		var qid int64

		BeforeEach(func() {
			qid = submit("Why pray five times a day?")
		})

		It("marks the question answered on a top-level owner reply", func() {
			r, err := svc.Reply(ctx, service.PostReplyParams{
				QuestionID: qid,
				Content:    "Prayer structures the day.",
				Author:     "Imam",
				IsOwner:    true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Author).To(Equal("Imam"))
			Expect(r.Replies).NotTo(BeNil())

			q := onlyQuestion()
			Expect(q.Status).To(Equal(model.QuestionStatusAnswered))
			Expect(q.Answers).To(HaveLen(1))
			Expect(q.Answers[0].ID).To(Equal(r.ID))
		})

		It("nests a reply under its parent and keeps the parent id", func() {
			top, err := svc.Reply(ctx, service.PostReplyParams{QuestionID: qid, Content: "Top", Author: "Imam", IsOwner: true})
			Expect(err).NotTo(HaveOccurred())

			child, err := svc.Reply(ctx, service.PostReplyParams{
				QuestionID:     qid,
				Content:        "Thank you",
				Author:         "Sara",
				ParentAnswerID: &top.ID,
			})
			Expect(err).NotTo(HaveOccurred())

			q := onlyQuestion()
			Expect(q.Answers).To(HaveLen(1))
			Expect(q.Answers[0].Replies).To(HaveLen(1))
			Expect(q.Answers[0].Replies[0].ID).To(Equal(child.ID))
			Expect(*q.Answers[0].Replies[0].ParentAnswerID).To(Equal(top.ID))
		})

		It("does not mark the question answered on a nested owner reply", func() {
			top, err := svc.Reply(ctx, service.PostReplyParams{QuestionID: qid, Content: "Can you clarify?", Author: "Ali"})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Reply(ctx, service.PostReplyParams{
				QuestionID:     qid,
				Content:        "Sure",
				IsOwner:        true,
				ParentAnswerID: &top.ID,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(onlyQuestion().Status).To(Equal(model.QuestionStatusPending))
		})

		It("adds the reply at the top level when the parent is unknown", func() {
			missing := int64(999)
			_, err := svc.Reply(ctx, service.PostReplyParams{
				QuestionID:     qid,
				Content:        "Orphan",
				IsOwner:        true,
				ParentAnswerID: &missing,
			})
			Expect(err).NotTo(HaveOccurred())

			q := onlyQuestion()
			Expect(q.Answers).To(HaveLen(1))
			Expect(q.Answers[0].Author).To(Equal(model.DefaultAuthor))
			Expect(q.Status).To(Equal(model.QuestionStatusAnswered))
		})

		It("rejects blank content", func() {
			_, err := svc.Reply(ctx, service.PostReplyParams{QuestionID: qid, Content: "   "})
			var vErr *service.ValidationError
			Expect(errors.As(err, &vErr)).To(BeTrue())
			Expect(vErr.Field).To(Equal("content"))
		})

		It("returns ErrQuestionNotFound for an unknown question", func() {
			_, err := svc.Reply(ctx, service.PostReplyParams{QuestionID: qid + 1, Content: "Hello"})
			Expect(err).To(MatchError(service.ErrQuestionNotFound))
			Expect(onlyQuestion().Answers).To(BeEmpty())
		})
	})

	Describe("ToggleLike", func() {
		It("likes and unlikes for the same user", func() {
			qid := submit("Why pray five times a day?")

			res, err := svc.ToggleLike(ctx, qid, "user_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(model.LikeResult{Likes: 1, IsLiked: true}))
			Expect(onlyQuestion().LikedBy).To(ConsistOf("user_1"))

			res, err = svc.ToggleLike(ctx, qid, "user_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(model.LikeResult{Likes: 0, IsLiked: false}))
			Expect(onlyQuestion().LikedBy).To(BeEmpty())
		})

		It("counts distinct users", func() {
			qid := submit("Why pray five times a day?")

			_, err := svc.ToggleLike(ctx, qid, "user_1")
			Expect(err).NotTo(HaveOccurred())
			res, err := svc.ToggleLike(ctx, qid, "user_2")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Likes).To(Equal(2))
		})

		It("returns ErrQuestionNotFound for an unknown question", func() {
			_, err := svc.ToggleLike(ctx, 12345, "user_1")
			Expect(err).To(MatchError(service.ErrQuestionNotFound))
		})

		It("rejects a blank user id", func() {
			qid := submit("Why pray five times a day?")
			_, err := svc.ToggleLike(ctx, qid, " ")
			var vErr *service.ValidationError
			Expect(errors.As(err, &vErr)).To(BeTrue())
		})
	})

	Describe("when the primary is empty and read-only", func() {
		BeforeEach(func() {
			fallback, err := store.NewFallbackBackend(filepath.Join(GinkgoT().TempDir(), "questions.json"))
			Expect(err).NotTo(HaveOccurred())
			e, err := store.NewEngine([]store.Backend{readOnlyEmptyBackend{}, fallback}, time.Second)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.Initialize(ctx)
			Expect(err).NotTo(HaveOccurred())
			svc = service.NewQuestionService(e, lock.NewLocal())
		})

		It("lists questions saved to the fallback", func() {
			first := submit("Why pray five times a day?")
			second := submit("What is zakat?")

			qs, err := svc.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(qs).To(HaveLen(2))
			Expect(qs[0].ID).To(Equal(first))
			Expect(qs[1].ID).To(Equal(second))
		})
	})

	Describe("when storage is unavailable", func() {
		BeforeEach(func() {
			broken, err := store.NewEngine([]store.Backend{failingBackend{name: "remote"}, failingBackend{name: "fallback"}}, time.Second)
			Expect(err).NotTo(HaveOccurred())
			svc = service.NewQuestionService(broken, nil)
		})

		It("surfaces a StoreError from mutations", func() {
			_, err := svc.Submit(ctx, service.SubmitQuestionParams{Question: "Is anyone there?"})
			var storeErr *store.StoreError
			Expect(errors.As(err, &storeErr)).To(BeTrue())
			Expect(storeErr.Errs).To(HaveLen(2))
		})

		It("still lists an empty collection", func() {
			qs, err := svc.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(qs).To(BeEmpty())
		})
	})
})
