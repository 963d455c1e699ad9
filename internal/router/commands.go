package router

import (
	"context"
	"errors"
	"fmt"

	"rollcall/internal/mention"
	"rollcall/internal/roster"
	kit "rollcall/internal/transport"
	logx "rollcall/pkg/logx"
)

const welcomeText = "👋 Hi! I'm a roll-call bot.\n" +
	"1) /scan — reset the list and track every admin of this chat.\n" +
	"2) From then on I remember everyone who writes or joins.\n" +
	"3) /all — mention everyone I know."

// cmdScan reseeds the chat roster from the current administrator list.
// The bot must itself be an administrator, otherwise nothing changes.
func (r *Router) cmdScan(ctx context.Context, msg *kit.Message) {
	admins, err := r.adapter.ChatAdmins(ctx, msg.ChatID)
	if err != nil {
		r.log.Warn("admin list fetch failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		r.reply(ctx, msg, "⚠️ Could not fetch the administrator list, try again later.", nil)
		return
	}

	members := make([]roster.Member, 0, len(admins))
	for _, a := range admins {
		members = append(members, memberFromUser(a))
	}

	count, err := r.reg.Resync(msg.ChatID, r.adapter.Self().ID, members)
	if err != nil {
		if errors.Is(err, roster.ErrNotAdministrator) {
			r.reply(ctx, msg, "❌ I'm not an admin of this chat — promote me and run /scan again.", nil)
			return
		}
		r.log.Error("resync failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		return
	}
	r.reply(ctx, msg, fmt.Sprintf("✅ Admin scan finished: %d members tracked.", count), nil)
}

// cmdAll mentions every tracked member of the chat in ordered batches.
func (r *Router) cmdAll(ctx context.Context, msg *kit.Message) {
	members := r.reg.Get(msg.ChatID)

	batches, err := mention.Compose(members, r.batchSize)
	if err != nil {
		if errors.Is(err, mention.ErrEmptyMemberSet) {
			r.reply(ctx, msg, "❌ The member list is empty. Run /scan or wait for chat activity.", nil)
			return
		}
		r.log.Error("mention compose failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		return
	}

	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	for i, batch := range batches {
		if err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, batch, opt); err != nil {
			// Stop instead of hammering the gateway with the rest.
			r.log.Warn("roll call send failed",
				logx.Int64("chat_id", msg.ChatID), logx.Int("batch", i+1), logx.Err(err))
			return
		}
	}
	r.log.Info("roll call sent",
		logx.Int64("chat_id", msg.ChatID), logx.Int("members", len(members)), logx.Int("batches", len(batches)))
}
