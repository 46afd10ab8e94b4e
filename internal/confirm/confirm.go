// Package confirm реализует двухшаговое подтверждение разрушительных действий.
//
// Первый запрос «взводит» действие и выдаёт одноразовый токен, повторный запрос
// с этим токеном в течение времени жизни подтверждает действие.
package confirm

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotArmed возвращается, если токен отсутствует, истёк или не соответствует действию.
var ErrNotArmed = errors.New("action is not armed")

// Action обозначает вид подтверждаемого действия.
type Action string

const (
	ActionResetSavings Action = "reset_savings"
	ActionResetAll     Action = "reset_all"
)

type key struct {
	user   string
	action Action
}

type pending struct {
	token     string
	expiresAt time.Time
}

// Registry хранит выданные токены подтверждения в памяти процесса.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[key]pending
}

// NewRegistry создаёт реестр токенов с указанным временем жизни.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[key]pending),
	}
}

// Arm выдаёт новый токен для действия пользователя. Предыдущий токен того же действия становится недействительным.
func (r *Registry) Arm(user string, action Action) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpiredLocked()

	token := uuid.NewString()
	r.pending[key{user: user, action: action}] = pending{
		token:     token,
		expiresAt: r.now().Add(r.ttl),
	}
	return token
}

// Commit проверяет и погашает токен.
func (r *Registry) Commit(user string, action Action, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(user, action, token); err != nil {
		return err
	}
	delete(r.pending, key{user: user, action: action})
	return nil
}

// Check проверяет токен, не погашая его. Погасить токен после успешного
// действия можно через Release.
func (r *Registry) Check(user string, action Action, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.checkLocked(user, action, token)
}

// Release погашает токен, если он всё ещё ожидает подтверждения.
func (r *Registry) Release(user string, action Action, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{user: user, action: action}
	if p, ok := r.pending[k]; ok && subtle.ConstantTimeCompare([]byte(p.token), []byte(token)) == 1 {
		delete(r.pending, k)
	}
}

func (r *Registry) checkLocked(user string, action Action, token string) error {
	k := key{user: user, action: action}
	p, ok := r.pending[k]
	if !ok || token == "" {
		return ErrNotArmed
	}
	if r.now().After(p.expiresAt) {
		delete(r.pending, k)
		return ErrNotArmed
	}
	if subtle.ConstantTimeCompare([]byte(p.token), []byte(token)) != 1 {
		return ErrNotArmed
	}
	return nil
}

// Disarm отменяет ожидающее подтверждение.
func (r *Registry) Disarm(user string, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, key{user: user, action: action})
}

func (r *Registry) evictExpiredLocked() {
	now := r.now()
	for k, p := range r.pending {
		if now.After(p.expiresAt) {
			delete(r.pending, k)
		}
	}
}
