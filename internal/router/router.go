// Package router classifies inbound gateway updates and drives the roster
// core: commands invoke resync / roll call, everything else feeds passive
// member collection.
package router

import (
	"context"
	"strings"
	"time"

	"rollcall/internal/roster"
	kit "rollcall/internal/transport"
	logx "rollcall/pkg/logx"
)

// commandTimeout bounds a single command's work (admin-list fetch plus a
// handful of throttled sends).
const commandTimeout = 30 * time.Second

type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	reg     *roster.Registry

	batchSize int
}

func New(log logx.Logger, adapter kit.Adapter, reg *roster.Registry, batchSize int) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{log: log, adapter: adapter, reg: reg, batchSize: batchSize}
}

// Run consumes updates until ctx is done or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	r.log.Info("dispatcher started")
	defer r.log.Info("dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.onMessage(ctx, up.Message)
	case kit.UpdateMember:
		r.onMember(up.Member)
	}
}

func (r *Router) onMessage(ctx context.Context, msg *kit.Message) {
	if msg == nil {
		return
	}

	if cmd, ok := parseCommand(msg.Text); ok {
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		switch cmd {
		case "start", "help":
			// Welcome text works everywhere, including direct messages.
			r.reply(cctx, msg, welcomeText, nil)
		case "scan":
			if msg.IsGroup {
				r.cmdScan(cctx, msg)
			}
		case "all":
			if msg.IsGroup {
				r.cmdAll(cctx, msg)
			}
		default:
			// Unknown commands are still chat activity.
			if msg.IsGroup {
				r.reg.Add(msg.ChatID, memberFromUser(msg.From))
			}
		}
		return
	}

	// Plain group chatter: remember the sender.
	if msg.IsGroup {
		r.reg.Add(msg.ChatID, memberFromUser(msg.From))
	}
}

func (r *Router) onMember(up *kit.MemberUpdate) {
	if up == nil || !up.IsGroup {
		return
	}
	if up.NewStatus.Present() {
		r.reg.Add(up.ChatID, memberFromUser(up.User))
	}
}

func (r *Router) reply(ctx context.Context, msg *kit.Message, text string, opt *kit.SendOptions) {
	if err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, text, opt); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
	}
}

// parseCommand extracts the command word from a "/cmd[@BotName] ..." text.
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", false
	}
	return strings.ToLower(word), true
}

func memberFromUser(u kit.User) roster.Member {
	return roster.Member{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
