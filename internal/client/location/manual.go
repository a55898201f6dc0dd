package location

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/client/geo"
)

type watcher struct {
	onFix func(Fix)
	onErr func(error)
}

// Manual is a Provider fed by hand, e.g. by the CLI "gps" command. The last
// position set is replayed, freshly stamped, to every new subscriber.
type Manual struct {
	mu       sync.Mutex
	watchers map[int]watcher
	nextID   int
	last     *Fix
	now      func() time.Time
}

func NewManual() *Manual {
	return &Manual{watchers: map[int]watcher{}, now: time.Now}
}

func (m *Manual) Watch(ctx context.Context, _ Options, onFix func(Fix), onErr func(error)) (func(), error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = watcher{onFix: onFix, onErr: onErr}
	var replay *Fix
	if m.last != nil {
		f := *m.last
		f.Timestamp = m.now()
		replay = &f
	}
	m.mu.Unlock()

	if replay != nil {
		onFix(*replay)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}, nil
}

// Set records a new position and pushes it to all subscribers.
func (m *Manual) Set(c geo.Coordinate, accuracy float64) Fix {
	m.mu.Lock()
	f := Fix{Coordinate: c, Accuracy: accuracy, Timestamp: m.now()}
	m.last = &f
	ws := m.snapshot()
	m.mu.Unlock()

	for _, w := range ws {
		w.onFix(f)
	}
	return f
}

// Fail pushes err to all subscribers, e.g. ErrPermissionDenied.
func (m *Manual) Fail(err error) {
	m.mu.Lock()
	ws := m.snapshot()
	m.mu.Unlock()

	for _, w := range ws {
		if w.onErr != nil {
			w.onErr(err)
		}
	}
}

// Watchers reports the number of live subscriptions.
func (m *Manual) Watchers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

func (m *Manual) snapshot() []watcher {
	ws := make([]watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		ws = append(ws, w)
	}
	return ws
}
