package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/qna/common/logger"
	"basegraph.app/qna/internal/model"
)

const DefaultTimeout = 5 * time.Second

// Engine runs collection reads and writes against an ordered list of
// backends. The first backend is the primary. The engine keeps no copy of
// the collection: every call goes to the backends.
type Engine struct {
	backends []Backend
	timeout  time.Duration
}

func NewEngine(backends []Backend, timeout time.Duration) (*Engine, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("at least one storage backend is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{backends: backends, timeout: timeout}, nil
}

// BackendNames returns the configured backends in priority order.
func (e *Engine) BackendNames() []string {
	names := make([]string, len(e.backends))
	for i, b := range e.backends {
		names[i] = b.Name()
	}
	return names
}

// Initialize makes sure a collection exists, writing an empty one to the
// primary when no backend holds one. Safe to call repeatedly.
func (e *Engine) Initialize(ctx context.Context) (*model.Collection, error) {
	sc := logger.StartSpan(ctx, "store.initialize")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "qna.store.engine"})

	primary := e.backends[0]
	blob, err := e.fetch(ctx, primary)
	switch {
	case err == nil:
		c, decodeErr := Decode(blob.Data)
		if decodeErr == nil {
			c.Revision = model.Revision{Backend: primary.Name(), Token: blob.Version}
			slog.InfoContext(ctx, "collection found", "backend", primary.Name(), "questions", len(c.Questions))
			return c, nil
		}
		// Never overwrite unreadable data with an empty document.
		slog.WarnContext(ctx, "primary collection unreadable, loading through fallback chain", "error", decodeErr)
		return e.Load(ctx), nil

	case errors.Is(err, ErrNotFound):
		// A later backend may hold writes made while the primary refused them.
		if c, found := e.scan(ctx, 1); found {
			slog.WarnContext(ctx, "primary has no collection but a fallback does, leaving primary untouched",
				"backend", c.Revision.Backend,
				"questions", len(c.Questions),
			)
			return c, nil
		}

		c := model.NewCollection()
		if err := e.Save(ctx, c); err != nil {
			sc.RecordError(err)
			return nil, fmt.Errorf("writing empty collection: %w", err)
		}
		slog.InfoContext(ctx, "empty collection created", "backend", primary.Name())
		return c, nil

	default:
		slog.WarnContext(ctx, "primary backend unavailable during initialization", "error", err)
		return e.Load(ctx), nil
	}
}

// Load returns the collection from the first backend that can produce a
// readable one. A backend without a collection (ErrNotFound) is skipped like
// a failing one, so writes that landed on a fallback stay visible. When no
// backend has a readable collection Load returns an empty one; it never fails.
func (e *Engine) Load(ctx context.Context) *model.Collection {
	sc := logger.StartSpan(ctx, "store.load")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "qna.store.engine"})

	c, _ := e.scan(ctx, 0)
	return c
}

// scan reads backends from index from onwards and returns the first readable
// collection. The bool is false when none had one; the collection is then
// empty.
func (e *Engine) scan(ctx context.Context, from int) (*model.Collection, bool) {
	failed := false
	for i := from; i < len(e.backends); i++ {
		b := e.backends[i]
		bctx := logger.WithLogFields(ctx, logger.LogFields{Backend: b.Name()})

		blob, err := e.fetch(bctx, b)
		if errors.Is(err, ErrNotFound) {
			slog.DebugContext(bctx, "backend holds no collection")
			continue
		}
		if err == nil {
			c, decodeErr := Decode(blob.Data)
			if decodeErr == nil {
				c.Revision = model.Revision{Backend: b.Name(), Token: blob.Version}
				if i > 0 {
					storeFallbacks.WithLabelValues("load").Inc()
					slog.WarnContext(bctx, "collection loaded from fallback backend")
				}
				return c, true
			}
			err = decodeErr
		}

		failed = true
		slog.WarnContext(bctx, "backend load failed, trying next", "error", err)
	}

	if failed {
		slog.ErrorContext(ctx, "no storage backend produced a collection, serving empty collection",
			"backends", e.BackendNames(),
		)
	}
	return model.NewCollection(), false
}

// Save writes c to the first backend that accepts it. The revision token of
// c is only handed to the backend that issued it. Returns *StoreError when
// every backend refuses.
func (e *Engine) Save(ctx context.Context, c *model.Collection) error {
	sc := logger.StartSpan(ctx, "store.save")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "qna.store.engine"})

	c.Normalize()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("encoding collection: %w", err)
	}

	var errs []error
	for i, b := range e.backends {
		bctx := logger.WithLogFields(ctx, logger.LogFields{Backend: b.Name()})

		blob := Blob{Data: data}
		if c.Revision.Backend == b.Name() {
			blob.Version = c.Revision.Token
		}

		err := e.store(bctx, b, blob)
		if err == nil {
			if i > 0 {
				storeFallbacks.WithLabelValues("save").Inc()
				slog.WarnContext(bctx, "collection saved to fallback backend")
			}
			return nil
		}

		errs = append(errs, &backendError{backend: b.Name(), op: "store", err: err})
		slog.WarnContext(bctx, "backend save failed, trying next", "error", err)
	}

	storeErr := &StoreError{Errs: errs}
	sc.RecordError(errors.Join(errs...))
	slog.ErrorContext(ctx, "all storage backends failed to save", "error", errors.Join(errs...))
	return storeErr
}

// Decode parses a stored collection. Invalid JSON is an error. A valid
// object without questions, or with null slices anywhere, is normalized.
func Decode(data []byte) (*model.Collection, error) {
	var c model.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding collection: %w", err)
	}
	c.Normalize()
	return &c, nil
}

func (e *Engine) fetch(ctx context.Context, b Backend) (Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sc := logger.StartSpan(ctx, "store.backend.fetch",
		trace.WithAttributes(attribute.String("qna.backend", b.Name())),
	)
	defer sc.End()

	start := time.Now()
	blob, err := b.Fetch(sc.Context())
	observe(b.Name(), "fetch", start, err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		sc.RecordError(err)
	}
	return blob, err
}

func (e *Engine) store(ctx context.Context, b Backend, blob Blob) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sc := logger.StartSpan(ctx, "store.backend.store",
		trace.WithAttributes(attribute.String("qna.backend", b.Name())),
	)
	defer sc.End()

	start := time.Now()
	err := b.Store(sc.Context(), blob)
	observe(b.Name(), "store", start, err)
	if err != nil {
		sc.RecordError(err)
	}
	return err
}
