package client

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// coordinator сериализует обновление access-токена: single-flight.
//
// Инварианты:
//   - в любой момент выполняется не более одного refresh-вызова;
//   - каждый вызвавший Await в окне обновления получает исход этого
//     одного вызова (новый токен либо ErrSessionExpired) — очередь
//     ожидающих разрешается в FIFO-порядке, никто не теряется;
//   - проверка "идёт ли уже refresh" и постановка в очередь атомарны
//     под мьютексом: наивный check-then-act дал бы гонку с двумя
//     одновременными refresh.
//
// Cancel (logout во время обновления) немедленно отклоняет очередь;
// результат незавершённого сетевого вызова отбрасывается по номеру
// поколения.
type coordinator struct {
	mu         sync.Mutex
	refreshing bool
	gen        uint64
	waiters    []chan refreshResult

	// refresh выполняет один сетевой вызов /auth/refresh
	// и возвращает новый access-токен.
	refresh func(ctx context.Context) (string, error)

	store   *TokenStore
	timeout time.Duration
	log     *slog.Logger

	// onSessionExpired сигнализирует остальной системе о разлогине
	// (например, чтобы UI увёл на страницу входа). Может быть nil.
	onSessionExpired func()
}

type refreshResult struct {
	token string
	err   error
}

const defaultRefreshTimeout = 10 * time.Second

func newCoordinator(
	refresh func(ctx context.Context) (string, error),
	store *TokenStore,
	timeout time.Duration,
	log *slog.Logger,
	onSessionExpired func(),
) *coordinator {
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &coordinator{
		refresh:          refresh,
		store:            store,
		timeout:          timeout,
		log:              log,
		onSessionExpired: onSessionExpired,
	}
}

// Await возвращает свежий access-токен, когда завершится текущий (или
// только что запущенный) refresh. Первый пришедший запускает обновление,
// остальные присоединяются к нему.
//
// Отмена ctx вызывающего снимает только его ожидание: общий refresh
// продолжается для остальных.
func (c *coordinator) Await(ctx context.Context) (string, error) {
	ch := make(chan refreshResult, 1) // буфер: доставка не блокируется, если ожидающий ушёл по ctx

	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	if !c.refreshing {
		c.refreshing = true
		gen := c.gen
		go c.run(gen)
	}
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// run выполняет единственный сетевой refresh и разрешает очередь.
// Контекст отвязан от вызывающих: их отмена не должна убивать общий вызов.
func (c *coordinator) run(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	token, err := c.refresh(ctx)

	c.mu.Lock()
	if c.gen != gen {
		// Cancel уже отклонил очередь — результат отбрасываем.
		c.mu.Unlock()
		return
	}

	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	var res refreshResult
	if err != nil {
		c.log.Warn("token_refresh_failed", slog.String("err", err.Error()))
		c.store.Clear()
		if c.onSessionExpired != nil {
			c.onSessionExpired()
		}
		res = refreshResult{err: ErrSessionExpired}
	} else {
		c.store.SetAccess(token)
		res = refreshResult{token: token}
	}

	// FIFO: порядок постановки в очередь сохраняется при разрешении.
	for _, w := range waiters {
		w <- res
	}
}

// Cancel отменяет текущее окно обновления: очередь немедленно получает
// ErrSessionExpired, результат незавершённого вызова будет отброшен.
// Вызывается при явном logout.
func (c *coordinator) Cancel() {
	c.mu.Lock()
	c.gen++
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, w := range waiters {
		w <- refreshResult{err: ErrSessionExpired}
	}
}
