package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/currency-bot/internal/bot/filters"
	"serotonyl.ru/currency-bot/internal/common"
	"serotonyl.ru/currency-bot/internal/config"
	"serotonyl.ru/currency-bot/internal/features/admin"
	"serotonyl.ru/currency-bot/internal/features/casino"
	"serotonyl.ru/currency-bot/internal/features/economy"
	"serotonyl.ru/currency-bot/internal/features/members"
	"serotonyl.ru/currency-bot/internal/features/rob"
	"serotonyl.ru/currency-bot/internal/features/shop"
	"serotonyl.ru/currency-bot/internal/features/trade"
	"serotonyl.ru/currency-bot/internal/ledger"
	"serotonyl.ru/currency-bot/internal/testutil"
)

const (
	chat  = int64(-1001)
	alice = int64(1)
	bob   = int64(2)
	owner = int64(99)
)

type noMembers struct{}

func (noMembers) GetChatMember(tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return tgbotapi.ChatMember{Status: "member"}, nil
}

type fixture struct {
	router *Router
	store  *ledger.Store
	sender *testutil.Sender
	dir    common.Directory
}

func newFixture(t *testing.T, dir common.Directory) *fixture {
	t.Helper()
	store := ledger.NewStore(6 * time.Hour)
	saver := &testutil.Saver{}
	sender := &testutil.Sender{}
	rng := &testutil.ScriptedRand{}
	if dir == nil {
		dir = &testutil.Directory{Users: map[int64]common.Target{
			alice: {UserID: alice, Name: "alice"},
			bob:   {UserID: bob, Name: "bob"},
		}}
	}

	ecoSvc := economy.NewService(store, saver, rng, nil)
	shopSvc := shop.NewService(store, saver, nil)
	auth := admin.NewAuth("", time.Hour)
	access := admin.NewAccess(noMembers{}, auth, &config.Config{AdminIDs: []int64{owner}})

	r := NewRouter(sender, Handlers{
		Economy:        economy.NewHandler(ecoSvc, sender, dir),
		Casino:         casino.NewHandler(casino.NewService(store, saver, rng, nil), sender),
		Rob:            rob.NewHandler(rob.NewService(store, saver, rng, nil), sender, dir),
		Shop:           shop.NewHandler(shopSvc, sender, dir),
		Trade:          trade.NewHandler(trade.NewManager(store, saver, nil, time.Minute), sender, dir),
		Admin:          admin.NewHandler(admin.NewService(store, saver, nil, time.Minute), auth, access, sender, dir),
		EconomyService: ecoSvc,
		ShopService:    shopSvc,
	})
	return &fixture{router: r, store: store, sender: sender, dir: dir}
}

func TestRouterAliases(t *testing.T) {
	f := newFixture(t, nil)
	for _, cmd := range []string{
		"домашка", "homework", "консультация", "officehours", "отсыпать", "give",
		"баланс", "balance", "bal", "валюты", "currencies", "топ", "leaderboard", "top",
		"ставка", "gamble", "джекпот", "jackpot", "ограбить", "rob",
		"магазин", "shop", "купить", "buy", "использовать", "use", "инвентарь", "inventory", "inv",
		"обмен", "trade", "новаявалюта", "addcurrency", "переименовать", "renamecurrency",
		"удалитьвалюту", "removecurrency", "выставить", "setbalance", "кулдаун", "setcooldown",
		"login", "logout", "найти", "suggest", "start", "help", "помощь",
	} {
		assert.True(t, f.router.Has(cmd), cmd)
	}
	assert.False(t, f.router.Has("пленки"))
}

func TestRouteUnknownCommand(t *testing.T) {
	f := newFixture(t, nil)
	handled := f.router.Route(context.Background(), "пленки", &common.Invocation{ChatID: chat, UserID: alice})
	assert.False(t, handled)
	assert.Empty(t, f.sender.Sent)
}

func TestRouteEconomyInCommunity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.True(t, f.router.Route(ctx, "валюты", &common.Invocation{ChatID: chat, UserID: alice}))
	assert.Contains(t, f.sender.Last(), "ещё нет валют")

	f.router.Route(ctx, "addcurrency", &common.Invocation{ChatID: chat, UserID: owner, Args: []string{"Gold", "🪙"}})
	assert.Equal(t, "✅ Валюта 🪙 Gold создана", f.sender.Last())

	f.router.Route(ctx, "currencies", &common.Invocation{ChatID: chat, UserID: alice})
	assert.Contains(t, f.sender.Last(), "🪙 Gold")
}

func TestRoutePrivateChat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.router.Route(ctx, "баланс", &common.Invocation{ChatID: alice, UserID: alice, Private: true})
	assert.Contains(t, f.sender.Last(), "Валюты живут в чатах")

	f.router.Route(ctx, "logout", &common.Invocation{ChatID: chat, UserID: alice})
	assert.Contains(t, f.sender.Last(), "только в личных сообщениях")

	f.router.Route(ctx, "logout", &common.Invocation{ChatID: alice, UserID: alice, Private: true})
	assert.Equal(t, "Активной сессии нет", f.sender.Last())

	f.router.Route(ctx, "help", &common.Invocation{ChatID: alice, UserID: alice, Private: true})
	assert.Contains(t, f.sender.Last(), "Бот валют сообщества")
}

func TestRouteSuggest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.router.Route(ctx, "addcurrency", &common.Invocation{ChatID: chat, UserID: owner, Args: []string{"Shells", "🐚"}})

	f.router.Route(ctx, "найти", &common.Invocation{ChatID: chat, UserID: alice, Args: []string{"sh"}})
	last := f.sender.Last()
	assert.Contains(t, last, "Валюты: Shells")
	assert.Contains(t, last, "Предметы: shield")

	f.router.Route(ctx, "suggest", &common.Invocation{ChatID: chat, UserID: alice, Args: []string{"zzz"}})
	assert.Equal(t, "🔍 Ничего не найдено", f.sender.Last())
}

func TestRouteCallback(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	cb := func(data string) *tgbotapi.CallbackQuery {
		return &tgbotapi.CallbackQuery{ID: "cb", Data: data, From: &tgbotapi.User{ID: alice}}
	}

	assert.False(t, f.router.RouteCallback(ctx, cb("garbage")))
	assert.False(t, f.router.RouteCallback(ctx, cb("karma:ok:1")))

	assert.True(t, f.router.RouteCallback(ctx, cb("trade:ok:missing")))
	assert.True(t, f.router.RouteCallback(ctx, cb("rmcur:no:missing")))
	require.Len(t, f.sender.Requests, 2)
	for _, req := range f.sender.Requests {
		answer := req.(tgbotapi.CallbackConfig)
		assert.True(t, strings.HasPrefix(answer.Text, "❌"), answer.Text)
	}
}

type memRepo struct {
	mu    sync.Mutex
	users map[int64]*members.Member
}

func (r *memRepo) Upsert(_ context.Context, m *members.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.users[m.UserID] = &cp
	return nil
}

func (r *memRepo) GetByUserID(_ context.Context, userID int64) (*members.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.users[userID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, common.ErrUserNotFound
}

func (r *memRepo) GetByUsername(_ context.Context, username string) (*members.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.users {
		if strings.EqualFold(m.Username, username) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, common.ErrUserNotFound
}

func TestHandleUpdate(t *testing.T) {
	repo := &memRepo{users: make(map[int64]*members.Member)}
	memberSvc := members.NewService(repo)
	f := newFixture(t, memberSvc)
	b := New(nil, &config.Config{BotMaxInflight: 1}, filters.NewAccessFilter(nil), f.router, members.NewHandler(memberSvc))
	ctx := context.Background()

	group := &tgbotapi.Chat{ID: chat, Type: "supergroup"}
	message := func(from *tgbotapi.User, text string) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 10, Chat: group, From: from, Text: text}}
	}

	b.handleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:           group,
		From:           &tgbotapi.User{ID: owner, UserName: "owner"},
		NewChatMembers: []tgbotapi.User{{ID: bob, UserName: "bob", FirstName: "Bob"}},
	}})
	_, err := repo.GetByUserID(ctx, bob)
	require.NoError(t, err)

	b.handleUpdate(ctx, message(&tgbotapi.User{ID: owner, UserName: "owner"}, "/addcurrency@CurrencyBot Gold 🪙"))
	assert.Equal(t, "✅ Валюта 🪙 Gold создана", f.sender.Last())

	b.handleUpdate(ctx, message(&tgbotapi.User{ID: owner, UserName: "owner"}, "!выставить @bob Gold 25"))
	assert.Equal(t, "✅ Баланс @bob: 🪙 25 Gold", f.sender.Last())

	// обычный текст не отвечаем, но автора запоминаем
	sent := len(f.sender.Sent)
	b.handleUpdate(ctx, message(&tgbotapi.User{ID: alice, UserName: "alice", FirstName: "Alice"}, "всем привет"))
	assert.Len(t, f.sender.Sent, sent)
	_, err = repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)

	// боты отсекаются фильтром
	b.handleUpdate(ctx, message(&tgbotapi.User{ID: 500, IsBot: true}, "!валюты"))
	assert.Len(t, f.sender.Sent, sent)

	reply := message(&tgbotapi.User{ID: owner, UserName: "owner"}, "!баланс")
	reply.Message.ReplyToMessage = &tgbotapi.Message{From: &tgbotapi.User{ID: bob, UserName: "bob"}}
	b.handleUpdate(ctx, reply)
	assert.Contains(t, f.sender.Last(), "🪙 25 Gold")
}

func TestHandleUpdateRecoversPanic(t *testing.T) {
	f := newFixture(t, nil)
	f.router.routes["boom"] = route{fn: func(context.Context, *common.Invocation) { panic("boom") }}
	b := New(nil, &config.Config{}, filters.NewAccessFilter(nil), f.router,
		members.NewHandler(members.NewService(&memRepo{users: make(map[int64]*members.Member)})))

	assert.NotPanics(t, func() {
		b.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: chat, Type: "group"},
			From: &tgbotapi.User{ID: alice},
			Text: "!boom",
		}})
	})
}
