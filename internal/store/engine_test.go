package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/qna/internal/model"
	"basegraph.app/qna/internal/store"
)

const oneQuestion = `{"questions":[{"id":1,"name":"Sara","question":"Why pray five times a day?","timestamp":"2024-01-02T03:04:05Z","status":"pending","likes":0,"likedBy":[],"answers":[]}]}`

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	newEngine := func(backends ...store.Backend) *store.Engine {
		e, err := store.NewEngine(backends, 200*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("requires at least one backend", func() {
		_, err := store.NewEngine(nil, time.Second)
		Expect(err).To(HaveOccurred())
	})

	Describe("Initialize", func() {
		It("writes an empty collection when the primary has none, so later fetches succeed", func() {
			dir := GinkgoT().TempDir()
			local, err := store.NewLocalBackend(filepath.Join(dir, "nested", "questions.json"))
			Expect(err).NotTo(HaveOccurred())
			e := newEngine(local)

			Expect(e.Load(ctx).Questions).To(BeEmpty())

			c, err := e.Initialize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Questions).To(BeEmpty())

			blob, err := local.Fetch(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(blob.Data)).To(MatchJSON(`{"questions": []}`))
		})

		It("is a no-op when the collection already exists", func() {
			primary := newMemoryBackend("primary").withData(oneQuestion, "v1")
			e := newEngine(primary)

			c, err := e.Initialize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Questions).To(HaveLen(1))

			_, err = e.Initialize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(primary.storeCalls).To(BeZero())
		})

		It("does not overwrite unreadable primary content", func() {
			primary := newMemoryBackend("primary").withData(`{not json`, "v1")
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			c, err := e.Initialize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Questions).To(HaveLen(1))
			Expect(primary.storeCalls).To(BeZero())
		})

		It("leaves an existing fallback collection alone when the primary has none", func() {
			primary := newMemoryBackend("primary")
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			c, err := e.Initialize(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Questions).To(HaveLen(1))
			Expect(primary.storeCalls).To(BeZero())
			Expect(fallback.storeCalls).To(BeZero())
		})

		It("fails when no backend accepts the empty collection", func() {
			primary := newMemoryBackend("primary")
			primary.storeErr = errors.New("disk full")
			e := newEngine(primary)

			_, err := e.Initialize(ctx)
			var storeErr *store.StoreError
			Expect(errors.As(err, &storeErr)).To(BeTrue())
		})
	})

	Describe("Load", func() {
		It("returns the primary collection with its revision", func() {
			primary := newMemoryBackend("primary").withData(oneQuestion, "v1")
			e := newEngine(primary)

			c := e.Load(ctx)
			Expect(c.Questions).To(HaveLen(1))
			Expect(c.Revision).To(Equal(model.Revision{Backend: "primary", Token: "v1"}))
		})

		It("treats a missing document everywhere as an empty collection", func() {
			primary := newMemoryBackend("primary")
			fallback := newMemoryBackend("fallback")
			e := newEngine(primary, fallback)

			c := e.Load(ctx)
			Expect(c.Questions).NotTo(BeNil())
			Expect(c.Questions).To(BeEmpty())
			Expect(fallback.fetchCalls).To(Equal(1))
		})

		It("reads later backends when the primary has no document", func() {
			primary := newMemoryBackend("primary")
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			c := e.Load(ctx)
			Expect(c.Questions).To(HaveLen(1))
			Expect(c.Revision.Backend).To(Equal("fallback"))
		})

		It("falls through to the next backend on an I/O error", func() {
			primary := newMemoryBackend("primary")
			primary.fetchErr = errors.New("connection reset")
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			c := e.Load(ctx)
			Expect(c.Questions).To(HaveLen(1))
			Expect(c.Revision.Backend).To(Equal("fallback"))
		})

		It("falls through on a conflict", func() {
			primary := newMemoryBackend("primary")
			primary.fetchErr = store.ErrConflict
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			Expect(e.Load(ctx).Questions).To(HaveLen(1))
		})

		It("falls through on malformed content", func() {
			primary := newMemoryBackend("primary").withData(`[1, 2`, "v1")
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			Expect(e.Load(ctx).Questions).To(HaveLen(1))
		})

		It("falls through when the primary times out", func() {
			primary := newMemoryBackend("primary")
			primary.block = true
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			Expect(e.Load(ctx).Questions).To(HaveLen(1))
		})

		It("normalizes an object without questions instead of falling through", func() {
			primary := newMemoryBackend("primary").withData(`{"legacy": true}`, "v1")
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			c := e.Load(ctx)
			Expect(c.Questions).NotTo(BeNil())
			Expect(c.Questions).To(BeEmpty())
			Expect(fallback.fetchCalls).To(BeZero())
		})

		It("degrades to an empty collection when every backend fails", func() {
			primary := newMemoryBackend("primary")
			primary.fetchErr = errors.New("boom")
			fallback := newMemoryBackend("fallback").withData(`garbage`, "f1")
			e := newEngine(primary, fallback)

			c := e.Load(ctx)
			Expect(c).NotTo(BeNil())
			Expect(c.Questions).To(BeEmpty())
		})
	})

	Describe("Save", func() {
		It("writes to the primary with the revision it issued", func() {
			primary := newMemoryBackend("primary").withData(oneQuestion, "v1")
			fallback := newMemoryBackend("fallback")
			e := newEngine(primary, fallback)

			c := e.Load(ctx)
			Expect(e.Save(ctx, c)).To(Succeed())
			Expect(primary.lastStore.Version).To(Equal("v1"))
			Expect(fallback.storeCalls).To(BeZero())
		})

		It("moves to the next backend on a conflict without retrying the primary", func() {
			primary := newMemoryBackend("primary").withData(oneQuestion, "v1")
			primary.storeErr = store.ErrConflict
			fallback := newMemoryBackend("fallback").withData(oneQuestion, "f1")
			e := newEngine(primary, fallback)

			c := e.Load(ctx)
			Expect(e.Save(ctx, c)).To(Succeed())
			Expect(primary.storeCalls).To(Equal(1))
			Expect(fallback.storeCalls).To(Equal(1))
			Expect(fallback.lastStore.Version).To(BeEmpty(), "tokens are only passed to the issuing backend")
		})

		It("moves to the next backend when the primary times out", func() {
			primary := newMemoryBackend("primary")
			primary.block = true
			fallback := newMemoryBackend("fallback")
			e := newEngine(primary, fallback)

			Expect(e.Save(ctx, model.NewCollection())).To(Succeed())
			Expect(fallback.storeCalls).To(Equal(1))
		})

		It("returns a generic StoreError when every backend fails", func() {
			primary := newMemoryBackend("primary")
			primary.storeErr = errors.New("permission denied: /srv/secret/path")
			fallback := newMemoryBackend("fallback")
			fallback.storeErr = store.ErrConflict
			e := newEngine(primary, fallback)

			err := e.Save(ctx, model.NewCollection())
			var storeErr *store.StoreError
			Expect(errors.As(err, &storeErr)).To(BeTrue())
			Expect(storeErr.Errs).To(HaveLen(2))
			Expect(err.Error()).NotTo(ContainSubstring("/srv/secret/path"))
			Expect(errors.Is(err, store.ErrConflict)).To(BeTrue())
		})

		It("keeps writes visible when the primary has no document and refuses writes", func() {
			primary := newMemoryBackend("remote")
			primary.storeErr = errors.New("403 forbidden")
			fallback, err := store.NewFallbackBackend(filepath.Join(GinkgoT().TempDir(), "questions.json"))
			Expect(err).NotTo(HaveOccurred())
			e := newEngine(primary, fallback)

			_, err = e.Initialize(ctx)
			Expect(err).NotTo(HaveOccurred())

			for _, qid := range []int64{1, 2} {
				c := e.Load(ctx)
				c.Questions = append(c.Questions, model.Question{ID: qid, Question: "Is this kept?"})
				Expect(e.Save(ctx, c)).To(Succeed())
			}

			c := e.Load(ctx)
			Expect(c.Revision.Backend).To(Equal(store.FallbackBackendName))
			Expect(c.Questions).To(HaveLen(2))
			Expect(c.Questions[0].ID).To(Equal(int64(1)))
			Expect(c.Questions[1].ID).To(Equal(int64(2)))
		})

		It("persists empty slices rather than null", func() {
			primary := newMemoryBackend("primary")
			e := newEngine(primary)

			c := &model.Collection{Questions: []model.Question{{ID: 1, Question: "Hello there"}}}
			Expect(e.Save(ctx, c)).To(Succeed())
			Expect(string(primary.data)).To(ContainSubstring(`"likedBy": []`))
			Expect(string(primary.data)).To(ContainSubstring(`"answers": []`))
		})
	})

	Describe("Decode", func() {
		It("rejects invalid JSON", func() {
			_, err := store.Decode([]byte(`{"questions": [`))
			Expect(err).To(HaveOccurred())
		})

		It("normalizes null questions", func() {
			c, err := store.Decode([]byte(`{"questions": null}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Questions).NotTo(BeNil())
		})
	})
})
