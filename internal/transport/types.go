// Package transport defines the gateway-neutral update and send types the
// bot core consumes, plus the Adapter interface a messaging gateway must
// implement. The Telegram implementation lives in transport/telegram.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
	UpdateMember  UpdateKind = "member"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
	Member  *MemberUpdate
}

// User is the gateway's identity record for one account.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

type Message struct {
	ID      int
	ChatID  int64
	IsGroup bool
	From    User
	Text    string
}

// MemberStatus is the subject's new membership state in a chat.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Present reports whether the status means the user is in the chat and
// worth tracking.
func (s MemberStatus) Present() bool {
	switch s {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	}
	return false
}

// MemberUpdate is a membership-status change in a chat.
type MemberUpdate struct {
	ChatID    int64
	IsGroup   bool
	User      User
	NewStatus MemberStatus
}

type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the messaging gateway seen from the core: it delivers inbound
// updates to a channel and accepts outbound sends. Implementations own all
// network concerns (polling, retries, rate limiting).
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error

	// ChatAdmins fetches the current administrator snapshot of a chat.
	ChatAdmins(ctx context.Context, chatID int64) ([]User, error)

	// Self returns the bot's own identity.
	Self() User
}
