// Package mention turns a tracked member set into sendable notification
// batches: @username tokens where possible, clickable tg://user deep links
// otherwise, grouped into bounded-size messages.
package mention

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"rollcall/internal/roster"
)

// DefaultBatchSize is how many mention tokens fit into one message.
// Telegram stops notifying users somewhere above this, so batches stay small.
const DefaultBatchSize = 15

// ErrEmptyMemberSet is returned when there is nobody to mention.
var ErrEmptyMemberSet = errors.New("no tracked members to mention")

// Token renders one member's mention token.
//
// Records with a username get a plain @username mention; the rest get an
// HTML anchor deep-linking the user id, with the trimmed display name as
// text. A record with no username and no names yields an anchor with empty
// text; degenerate, but still a valid mention.
func Token(m roster.Member) string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, m.ID, html.EscapeString(name))
}

// Compose renders members into ordered message batches of at most
// batchSize tokens each (DefaultBatchSize when batchSize <= 0).
//
// Tokens are ordered by user id so the same snapshot always produces the
// same batches; every chunk boundary is computed over that single pass.
// Each batch carries a "(i/total)" header so receivers can tell a
// multi-part roll call apart from a stray message.
func Compose(members map[int64]roster.Member, batchSize int) ([]string, error) {
	if len(members) == 0 {
		return nil, ErrEmptyMemberSet
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	ids := make([]int64, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		tokens = append(tokens, Token(members[id]))
	}

	total := (len(tokens) + batchSize - 1) / batchSize
	out := make([]string, 0, total)
	for i := 0; i < len(tokens); i += batchSize {
		end := i + batchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		header := fmt.Sprintf("🔔 Attention, everyone! (%d/%d)", len(out)+1, total)
		out = append(out, header+"\n"+strings.Join(tokens[i:end], " "))
	}
	return out, nil
}
