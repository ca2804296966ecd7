// guard реализует защиту логина от перебора паролей:
// скользящее окно неудачных попыток на каждый идентификатор (email).
//
// Окно — per-identifier, а не глобальное: один атакующий не может
// заблокировать вход несвязанным пользователям. Успешный вход сбрасывает
// счётчик, поэтому опечатки легитимных пользователей не копятся между
// сессиями.
package guard

import (
	"strings"
	"sync"
	"time"
)

// Guard — потокобезопасный учёт неудачных попыток входа.
// Состояние живёт в памяти процесса и создаётся один раз на старте
// (никаких пакетных синглтонов — см. тесты со свежим Guard на кейс).
type Guard struct {
	mu       sync.Mutex
	attempts map[string]*record

	maxAttempts int
	window      time.Duration

	// now подменяется в тестах.
	now func() time.Time
}

type record struct {
	count           int
	windowStartedAt time.Time
}

// New создаёт Guard; maxAttempts <= 0 и window <= 0 заменяются дефолтами (5, 15m).
func New(maxAttempts int, window time.Duration) *Guard {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}

	return &Guard{
		attempts:    make(map[string]*record),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// CheckAllowed сообщает, разрешена ли попытка входа для идентификатора.
// Если лимит исчерпан и окно ещё не истекло — (retryAfter, false).
// Истёкшее окно удаляет запись, и попытка разрешается.
func (g *Guard) CheckAllowed(identifier string) (time.Duration, bool) {
	id := normalize(identifier)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.attempts[id]
	if !ok {
		return 0, true
	}

	windowEnd := rec.windowStartedAt.Add(g.window)
	if !now.Before(windowEnd) {
		delete(g.attempts, id)
		return 0, true
	}

	if rec.count >= g.maxAttempts {
		retryAfter := windowEnd.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return retryAfter, false
	}

	return 0, true
}

// RecordFailure фиксирует неудачную попытку: создаёт запись с началом окна
// либо инкрементирует счётчик внутри текущего окна.
func (g *Guard) RecordFailure(identifier string) {
	id := normalize(identifier)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.attempts[id]
	if !ok || !now.Before(rec.windowStartedAt.Add(g.window)) {
		g.attempts[id] = &record{count: 1, windowStartedAt: now}
		return
	}

	rec.count++
}

// RecordSuccess безусловно удаляет запись: следующая неудача начнёт счёт с 1.
func (g *Guard) RecordSuccess(identifier string) {
	id := normalize(identifier)

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.attempts, id)
}

// Sweep удаляет записи с истёкшим окном; вызывается фоновым джанитором.
func (g *Guard) Sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, rec := range g.attempts {
		if !now.Before(rec.windowStartedAt.Add(g.window)) {
			delete(g.attempts, id)
		}
	}
}

// SetNow подменяет источник времени (только для тестов).
func (g *Guard) SetNow(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.now = now
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
