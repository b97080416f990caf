// Package feed хранит журнал принятых показаний и рассылает новые записи
// подключённым наблюдателям. Журнал и множество наблюдателей принадлежат
// одному экземпляру Feed и защищены одним мьютексом.
package feed

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"SensorHub/internal/model"
)

// Типы сообщений для наблюдателей.
const (
	MessageSnapshot = "snapshot"
	MessageReading  = "reading"
)

// Message — то, что получает наблюдатель.
type Message struct {
	Type     string                  `json:"type"`
	Reading  *model.EnrichedReading  `json:"reading,omitempty"`
	Readings []model.EnrichedReading `json:"readings,omitempty"`
}

// Observer — живой канал к одному подписчику. Send не должен блокироваться.
type Observer interface {
	Send(msg []byte) error
	Close() error
}

// Relay получает копию каждой опубликованной записи (например, NATS).
type Relay interface {
	Relay(r model.EnrichedReading, msg []byte) error
}

// Feed — журнал показаний плюс рассылка.
type Feed struct {
	mu        sync.Mutex
	log       []model.EnrichedReading
	observers map[Observer]struct{}

	relay  Relay
	logger *zap.SugaredLogger
}

// Option настраивает Feed.
type Option func(*Feed)

// WithRelay добавляет зеркалирование опубликованных записей.
func WithRelay(r Relay) Option {
	return func(f *Feed) { f.relay = r }
}

// New создаёт пустой Feed.
func New(logger *zap.SugaredLogger, opts ...Option) *Feed {
	f := &Feed{observers: make(map[Observer]struct{}), logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Append добавляет запись в конец журнала. Журнал не ограничен по размеру.
func (f *Feed) Append(r model.EnrichedReading) {
	f.mu.Lock()
	f.log = append(f.log, r)
	f.mu.Unlock()
}

// Snapshot возвращает копию журнала на текущий момент.
func (f *Feed) Snapshot() []model.EnrichedReading {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Feed) snapshotLocked() []model.EnrichedReading {
	out := make([]model.EnrichedReading, len(f.log))
	copy(out, f.log)
	return out
}

// Len возвращает число записей в журнале.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.log)
}

// Observers возвращает число подключённых наблюдателей.
func (f *Feed) Observers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

// Register отправляет наблюдателю текущий снимок журнала и подписывает его на новые записи.
func (f *Feed) Register(o Observer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, err := json.Marshal(Message{Type: MessageSnapshot, Readings: f.snapshotLocked()})
	if err != nil {
		return err
	}
	if err := o.Send(msg); err != nil {
		return err
	}
	f.observers[o] = struct{}{}
	return nil
}

// Unregister отписывает наблюдателя. Повторный вызов безопасен.
func (f *Feed) Unregister(o Observer) {
	f.mu.Lock()
	delete(f.observers, o)
	f.mu.Unlock()
}

// Publish рассылает запись всем наблюдателям. Наблюдатель, которому не удалось
// отправить сообщение, отключается; остальные получают запись.
// Возвращает число наблюдателей, принявших сообщение.
func (f *Feed) Publish(r model.EnrichedReading) int {
	msg, err := json.Marshal(Message{Type: MessageReading, Reading: &r})
	if err != nil {
		f.logger.Errorw("feed: marshal reading", "id", r.ID, "error", err)
		return 0
	}

	var dropped []Observer
	delivered := 0
	f.mu.Lock()
	for o := range f.observers {
		if err := o.Send(msg); err != nil {
			delete(f.observers, o)
			dropped = append(dropped, o)
			f.logger.Warnw("feed: observer dropped", "error", err)
			continue
		}
		delivered++
	}
	f.mu.Unlock()

	for _, o := range dropped {
		_ = o.Close()
	}

	if f.relay != nil {
		if err := f.relay.Relay(r, msg); err != nil {
			f.logger.Warnw("feed: relay failed", "id", r.ID, "error", err)
		}
	}
	return delivered
}

// Close отключает всех наблюдателей.
func (f *Feed) Close() {
	f.mu.Lock()
	obs := make([]Observer, 0, len(f.observers))
	for o := range f.observers {
		obs = append(obs, o)
	}
	f.observers = make(map[Observer]struct{})
	f.mu.Unlock()
	for _, o := range obs {
		_ = o.Close()
	}
}
