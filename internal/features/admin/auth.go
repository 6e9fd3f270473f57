package admin

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/currency-bot/internal/common"
)

// Auth проверяет пароль администратора и хранит сессии в памяти.
// Перезапуск бота сбрасывает сессии и счётчики попыток.
type Auth struct {
	hash string
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[int64]session
	failures map[int64][]time.Time
}

// NewAuth создаёт проверку пароля. Пустой hash отключает вход.
func NewAuth(hash string, ttl time.Duration) *Auth {
	return &Auth{
		hash:     strings.TrimSpace(hash),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]session),
		failures: make(map[int64][]time.Time),
	}
}

// Login проверяет пароль с использованием Argon2id.
// MaxLoginFailures неудачных попыток за LoginWindow блокируют вход.
func (a *Auth) Login(userID int64, password string) (time.Time, error) {
	if a.hash == "" {
		return time.Time{}, common.ErrLoginDisabled
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	recent := a.recentFailures(userID, now)
	if len(recent) >= MaxLoginFailures {
		return time.Time{}, common.ErrTooManyAttempts
	}

	if !verifyArgon2id(password, a.hash) {
		a.failures[userID] = append(recent, now)
		log.WithFields(log.Fields{
			"user_id":  userID,
			"failures": len(a.failures[userID]),
		}).Warn("Неверный пароль администратора")
		return time.Time{}, common.ErrWrongPassword
	}

	delete(a.failures, userID)
	s := session{expiresAt: now.Add(a.ttl)}
	a.sessions[userID] = s
	log.WithField("user_id", userID).Info("Администратор вошёл")
	return s.expiresAt, nil
}

// HasSession — у пользователя есть непросроченная сессия.
func (a *Auth) HasSession(userID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[userID]
	if !ok {
		return false
	}
	if !a.now().Before(s.expiresAt) {
		delete(a.sessions, userID)
		return false
	}
	return true
}

// Logout завершает сессию.
func (a *Auth) Logout(userID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.sessions[userID]
	delete(a.sessions, userID)
	return ok
}

func (a *Auth) recentFailures(userID int64, now time.Time) []time.Time {
	var out []time.Time
	for _, t := range a.failures[userID] {
		if now.Sub(t) < LoginWindow {
			out = append(out, t)
		}
	}
	return out
}

// verifyArgon2id проверяет пароль против Argon2id хеша.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Неверный формат хеша пароля")
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		log.Error("Неподдерживаемая версия argon2")
		return false
	}

	var (
		memory      uint32
		iterations  uint32
		parallelism uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров хеша")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	// Сравниваем за постоянное время
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// HashPassword строит Argon2id хеш в формате, который понимает verifyArgon2id.
func HashPassword(password string, salt []byte) string {
	const (
		memory      uint32 = 64 * 1024
		iterations  uint32 = 3
		parallelism uint8  = 2
		keyLength   uint32 = 32
	)
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}
