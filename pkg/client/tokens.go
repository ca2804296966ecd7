package client

import "sync"

// TokenStore — потокобезопасное хранилище пары токенов.
// Явно создаваемый объект, без пакетного состояния: каждый Client
// владеет своим экземпляром, тесты — свежим на кейс.
type TokenStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// SetPair сохраняет новую пару токенов (login/register).
func (s *TokenStore) SetPair(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = access
	s.refresh = refresh
}

// SetAccess обновляет только access-токен (refresh не ротируется).
func (s *TokenStore) SetAccess(access string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = access
}

// Access возвращает текущий access-токен ("" — не аутентифицированы).
func (s *TokenStore) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.access
}

// Refresh возвращает текущий refresh-токен.
func (s *TokenStore) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.refresh
}

// Clear сбрасывает оба токена (logout / неудачный refresh).
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
}
