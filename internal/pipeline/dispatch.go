package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/raphaelgruber/mealchat-go/internal/models"
)

// dedupeSize bounds the idempotency cache. Old entries fall out; the window
// only needs to cover realistic redelivery gaps.
const dedupeSize = 4096

// triggerTimeout bounds one trigger invocation end to end (image fetch +
// inference + writes).
const triggerTimeout = 2 * time.Minute

// Dispatcher is the change-triggered compute shell: every message appended
// through it is handed to both protocol triggers, each in its own
// goroutine, and fanned out to conversation watchers. It implements Store
// so the engine's own appends (description, confirmation, summary,
// fallback) re-enter the trigger channel exactly like user appends; the
// guards no-op them.
//
// Redelivered creation events are suppressed by an LRU keyed on
// trigger+message id. The original pipeline had no such deduplication and
// would double-write on redelivery; suppressing it here is a deliberate
// behavior change.
type Dispatcher struct {
	store  Store
	engine *Engine
	logger *slog.Logger
	seen   *lru.Cache[string, struct{}]

	mu      sync.Mutex
	nextSub int
	subs    map[string]map[int]chan models.Message

	wg sync.WaitGroup
}

// NewDispatcher wraps the given store. Bind the engine before appending.
func NewDispatcher(store Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	seen, err := lru.New[string, struct{}](dedupeSize)
	if err != nil {
		// lru.New only fails on size <= 0.
		panic(err)
	}
	return &Dispatcher{
		store:  store,
		logger: logger,
		seen:   seen,
		subs:   make(map[string]map[int]chan models.Message),
	}
}

// Bind attaches the engine. Separate from NewDispatcher because the engine
// writes through the dispatcher and so is constructed after it.
func (d *Dispatcher) Bind(engine *Engine) {
	d.engine = engine
}

// Append writes one message to the log, then notifies watchers and fires
// the triggers for it.
func (d *Dispatcher) Append(ctx context.Context, userID string, msg models.Message) (*models.Message, error) {
	created, err := d.store.AppendMessage(ctx, userID, msg)
	if err != nil {
		return nil, err
	}
	d.publish(userID, *created)
	d.fire(userID, *created)
	return created, nil
}

// AppendMessage makes Dispatcher satisfy Store, so engine writes re-enter
// the trigger channel.
func (d *Dispatcher) AppendMessage(ctx context.Context, userID string, msg models.Message) (*models.Message, error) {
	return d.Append(ctx, userID, msg)
}

// LatestMessageBefore delegates to the wrapped store.
func (d *Dispatcher) LatestMessageBefore(ctx context.Context, userID string, before time.Time) (*models.Message, error) {
	return d.store.LatestMessageBefore(ctx, userID, before)
}

// CreateMeal delegates to the wrapped store.
func (d *Dispatcher) CreateMeal(ctx context.Context, meal models.Meal) (*models.Meal, error) {
	return d.store.CreateMeal(ctx, meal)
}

// fire runs both triggers for a created message, each in its own goroutine
// with a fresh bounded context. Trigger invocations are concurrent and
// independent; they coordinate only through the store's timestamp order.
func (d *Dispatcher) fire(userID string, msg models.Message) {
	if d.engine == nil {
		return
	}

	d.spawn("image", msg, func(ctx context.Context) error {
		return d.engine.HandleImageCreated(ctx, userID, msg)
	})
	d.spawn("confirm", msg, func(ctx context.Context) error {
		return d.engine.HandleUserReply(ctx, userID, msg)
	})
}

func (d *Dispatcher) spawn(trigger string, msg models.Message, fn func(context.Context) error) {
	key := trigger + ":" + msg.ID.String()
	if already, _ := d.seen.ContainsOrAdd(key, struct{}{}); already {
		d.logger.Debug("duplicate delivery suppressed", "trigger", trigger, "message", msg.ID.String())
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.logger.Error("trigger failed", "trigger", trigger, "message", msg.ID.String(), "error", err)
		}
	}()
}

// Wait blocks until all in-flight trigger invocations finish. Used for
// graceful shutdown and deterministic tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Subscribe registers a watcher for a conversation. Every message appended
// through the dispatcher is delivered on the returned channel. The cancel
// function unregisters and closes it.
func (d *Dispatcher) Subscribe(userID string) (<-chan models.Message, func()) {
	ch := make(chan models.Message, 16)

	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	if d.subs[userID] == nil {
		d.subs[userID] = make(map[int]chan models.Message)
	}
	d.subs[userID][id] = ch
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if subs, ok := d.subs[userID]; ok {
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
			}
			if len(subs) == 0 {
				delete(d.subs, userID)
			}
		}
	}
	return ch, cancel
}

func (d *Dispatcher) publish(userID string, msg models.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs[userID] {
		select {
		case ch <- msg:
		default:
			// Slow watcher; drop rather than stall the pipeline.
			d.logger.Warn("watcher channel full, dropping message", "user", userID)
		}
	}
}
