// Package toasts is the notification collaborator: short messages shown to
// the user after an action completes.
//
// [Module.Show] is fire-and-forget. Presentation (rendering, translation of
// message keys) belongs to the UI; this module only keeps the queue.
package toasts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/groupstate/entity"
	"github.com/jpalmerr/groupstate/module"
)

// Name is the module namespace.
const Name module.Name = "toasts"

const defaultTimeout = 5 * time.Second

// Type is the visual kind of a toast.
type Type string

const (
	TypePositive Type = "positive"
	TypeNegative Type = "negative"
	TypeInfo     Type = "info"
	TypeWarning  Type = "warning"
)

// Config controls how a toast is presented.
type Config struct {
	Type    Type          `json:"type"`
	Timeout time.Duration `json:"timeout"`
}

// Toast is a message to show. Message is normally a translation key such as
// "GROUP.INVITATION_ACCEPT_SUCCESS".
type Toast struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
}

// Module owns the toast queue.
type Module struct {
	module.Base

	logger *slog.Logger
	now    func() time.Time
	mu     sync.RWMutex
	queue  *entity.Collection[string, Toast]
}

// New creates the toasts module. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{
		Base:   module.NewBase(Name),
		logger: logger,
		now:    time.Now,
		queue:  entity.NewCollection(func(t Toast) string { return t.ID }),
	}
}

// Show queues a toast. Missing type defaults to positive and missing
// timeout to five seconds.
func (m *Module) Show(t Toast) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Config.Type == "" {
		t.Config.Type = TypePositive
	}
	if t.Config.Timeout <= 0 {
		t.Config.Timeout = defaultTimeout
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}

	m.commit("append", func() { m.queue.Append(t) })

	level := slog.LevelInfo
	if t.Config.Type == TypeNegative {
		level = slog.LevelWarn
	}
	m.logger.Log(context.Background(), level, "toast shown", "message", t.Message, "type", t.Config.Type)
}

// Dismiss removes a toast. Unknown ids are ignored.
func (m *Module) Dismiss(id string) {
	m.commit("delete", func() { m.queue.Delete(id) })
}

// Prune removes toasts whose timeout elapsed before now and returns how many
// were removed.
func (m *Module) Prune(now time.Time) int {
	m.mu.Lock()
	var expired []string
	for _, t := range m.queue.Items() {
		if !now.Before(t.CreatedAt.Add(t.Config.Timeout)) {
			expired = append(expired, t.ID)
		}
	}
	for _, id := range expired {
		m.queue.Delete(id)
	}
	m.mu.Unlock()

	if len(expired) > 0 {
		m.Committed("delete")
	}
	return len(expired)
}

// List returns queued toasts, oldest first.
func (m *Module) List() []Toast {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queue.Items()
}

// Clear empties the queue.
func (m *Module) Clear() {
	m.commit("clear", m.queue.Clear)
}

// Refresh drops expired toasts. It lets the periodic refresher keep the
// queue short without a dedicated timer.
func (m *Module) Refresh(context.Context) error {
	m.Prune(m.now())
	return nil
}

// Validate checks the queue invariants.
func (m *Module) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queue.Validate()
}

// Snapshot returns a JSON-encodable view of the module.
func (m *Module) Snapshot() any {
	return struct {
		Toasts []Toast `json:"toasts"`
	}{m.List()}
}

func (m *Module) commit(mutation string, fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
	m.Committed(mutation)
}

// Show queues a toast.
type Show struct{ Toast Toast }

// Dismiss removes a toast.
type Dismiss struct{ ID string }

func (Show) Target() module.Name    { return Name }
func (Dismiss) Target() module.Name { return Name }

// Handle dispatches a toasts command.
func (m *Module) Handle(_ context.Context, cmd module.Command) error {
	switch c := cmd.(type) {
	case Show:
		m.Show(c.Toast)
	case Dismiss:
		m.Dismiss(c.ID)
	default:
		return module.UnknownCommand(Name, cmd)
	}
	return nil
}
