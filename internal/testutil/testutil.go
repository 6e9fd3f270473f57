// Package testutil — детерминированные заглушки для тестов:
// случайность, часы, сохранение, Telegram и справочник пользователей.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"serotonyl.ru/currency-bot/internal/common"
)

// ScriptedRand отдаёт заранее заданные значения по очереди.
// IntN возвращает значение из Ints, приведённое к [0, n).
type ScriptedRand struct {
	mu     sync.Mutex
	Ints   []int
	Floats []float64
}

func (r *ScriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Ints) == 0 {
		panic(fmt.Sprintf("ScriptedRand: закончились целые (IntN(%d))", n))
	}
	v := r.Ints[0]
	r.Ints = r.Ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func (r *ScriptedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Floats) == 0 {
		panic("ScriptedRand: закончились дробные")
	}
	v := r.Floats[0]
	r.Floats = r.Floats[1:]
	return v
}

// Clock — управляемые часы.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Saver считает вызовы Flush и может вернуть заданную ошибку.
type Saver struct {
	mu    sync.Mutex
	Calls int
	Err   error
}

func (s *Saver) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	return s.Err
}

// FlushFunc превращает функцию в ledger.Saver.
type FlushFunc func(ctx context.Context) error

func (f FlushFunc) Flush(ctx context.Context) error { return f(ctx) }

// Sender запоминает всё, что обработчики отправили в Telegram.
type Sender struct {
	mu       sync.Mutex
	Sent     []tgbotapi.Chattable
	Requests []tgbotapi.Chattable
}

func (s *Sender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, c)
	return tgbotapi.Message{MessageID: len(s.Sent)}, nil
}

func (s *Sender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// Texts возвращает тексты отправленных сообщений и правок.
func (s *Sender) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.Sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

// Last возвращает текст последнего сообщения.
func (s *Sender) Last() string {
	texts := s.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// Directory — справочник пользователей в памяти.
type Directory struct {
	Users map[int64]common.Target
}

func (d *Directory) ResolveTarget(_ context.Context, inv *common.Invocation) (*common.Target, []string, error) {
	if inv.ReplyTo != nil {
		return &common.Target{UserID: inv.ReplyTo.ID, IsBot: inv.ReplyTo.IsBot, Name: inv.ReplyTo.FirstName}, inv.Args, nil
	}
	if len(inv.Args) == 0 {
		return nil, inv.Args, common.ErrUserNotFound
	}
	name := strings.TrimPrefix(inv.Args[0], "@")
	for _, u := range d.Users {
		if u.Name == name {
			t := u
			return &t, inv.Args[1:], nil
		}
	}
	return nil, inv.Args, common.ErrUserNotFound
}

func (d *Directory) DisplayName(_ context.Context, userID int64) string {
	if u, ok := d.Users[userID]; ok {
		return u.Name
	}
	return fmt.Sprintf("id%d", userID)
}
