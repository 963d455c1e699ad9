// Package telegram implements the transport.Adapter gateway on top of
// telebot's long-polling Bot API client.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	kit "rollcall/internal/transport"
	logx "rollcall/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration

	// SendPerSec caps outbound messages per second. Telegram throttles
	// bots that burst into groups; mention roll calls are exactly that
	// kind of burst. 0 means the default of 1.
	SendPerSec int
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot *tele.Bot
	lim *rate.Limiter

	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool
	stopped chan struct{}

	// droppedUpdates counts updates dropped because the consumer was
	// slower than the poll loop; reported once on Stop().
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token: cfg.Token,
		Poller: &tele.LongPoller{
			Timeout: timeout,
			// chat_member is not delivered unless explicitly requested.
			AllowedUpdates: []string{"message", "chat_member"},
		},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	rps := cfg.SendPerSec
	if rps <= 0 {
		rps = 1
	}

	a := &Adapter{
		cfg: cfg,
		log: log,
		bot: b,
		lim: rate.NewLimiter(rate.Limit(rps), rps),
	}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

// messageEndpoints are the telebot endpoints funneled into one message
// handler. Member discovery feeds on any activity, so media, stickers and
// the like count just as much as text; OnMedia is telebot's fallback for
// every media kind without a dedicated registered handler.
var messageEndpoints = []string{
	tele.OnText,
	tele.OnMedia,
	tele.OnContact,
	tele.OnLocation,
	tele.OnVenue,
	tele.OnDice,
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	onMessage := func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil || m.Chat == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateMessage,
			Message: &kit.Message{
				ID:      m.ID,
				ChatID:  m.Chat.ID,
				IsGroup: isGroup(m.Chat),
				From:    mapUser(m.Sender),
				// Empty for non-text activity; the router only needs
				// text to spot commands.
				Text: m.Text,
			},
		})
		return nil
	}
	for _, endpoint := range messageEndpoints {
		a.bot.Handle(endpoint, onMessage)
	}

	a.bot.Handle(tele.OnChatMember, func(c tele.Context) error {
		cm := c.ChatMember()
		if cm == nil || cm.Chat == nil || cm.NewChatMember == nil || cm.NewChatMember.User == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateMember,
			Member: &kit.MemberUpdate{
				ChatID:    cm.Chat.ID,
				IsGroup:   isGroup(cm.Chat),
				User:      mapUser(cm.NewChatMember.User),
				NewStatus: kit.MemberStatus(cm.NewChatMember.Role),
			},
		})
		return nil
	})
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.stopped = make(chan struct{})

	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()
	go func() {
		defer close(a.stopped)
		a.log.Info("polling started", logx.String("bot", a.Self().Username))
		// Start blocks until Stop() is called.
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	stopped := a.stopped
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
		a.log.Warn("incoming updates were dropped (consumer too slow)", logx.Uint64("count", n))
	}

	// telebot's Stop is expected to be fast; don't hang shutdown on a
	// long-poll that refuses to return.
	go a.bot.Stop()

	grace := time.NewTimer(2 * time.Second)
	defer grace.Stop()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.C:
		a.log.Warn("telegram stop timed out")
		return nil
	}
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if err := a.lim.Wait(ctx); err != nil {
		return err
	}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	})
	return err
}

func (a *Adapter) ChatAdmins(ctx context.Context, chatID int64) ([]kit.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	admins, err := a.bot.AdminsOf(&tele.Chat{ID: chatID})
	if err != nil {
		return nil, err
	}
	out := make([]kit.User, 0, len(admins))
	for _, cm := range admins {
		if cm.User == nil {
			continue
		}
		out = append(out, mapUser(cm.User))
	}
	return out, nil
}

func (a *Adapter) Self() kit.User {
	if a.bot.Me == nil {
		return kit.User{}
	}
	return mapUser(a.bot.Me)
}

func mapUser(u *tele.User) kit.User {
	return kit.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func isGroup(c *tele.Chat) bool {
	return c.Type == tele.ChatGroup || c.Type == tele.ChatSuperGroup
}
