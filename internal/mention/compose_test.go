package mention

import (
	"fmt"
	"strings"
	"testing"

	"rollcall/internal/roster"
)

func TestToken(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		m    roster.Member
		want string
	}{
		{name: "username wins", m: roster.Member{ID: 1, Username: "alice", FirstName: "Alice"}, want: "@alice"},
		{name: "name fallback", m: roster.Member{ID: 2, FirstName: "Bob", LastName: "Smith"}, want: `<a href="tg://user?id=2">Bob Smith</a>`},
		{name: "first name only", m: roster.Member{ID: 3, FirstName: "Carol"}, want: `<a href="tg://user?id=3">Carol</a>`},
		{name: "html escaped", m: roster.Member{ID: 4, FirstName: "<b>"}, want: `<a href="tg://user?id=4">&lt;b&gt;</a>`},
		// No username, no names: the anchor keeps an empty display text
		// rather than substituting a placeholder.
		{name: "degenerate", m: roster.Member{ID: 5}, want: `<a href="tg://user?id=5"></a>`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Token(tt.m); got != tt.want {
				t.Fatalf("Token(%+v) = %q, want %q", tt.m, got, tt.want)
			}
		})
	}
}

func TestComposeEmpty(t *testing.T) {
	t.Parallel()
	if _, err := Compose(map[int64]roster.Member{}, 0); err != ErrEmptyMemberSet {
		t.Fatalf("expected ErrEmptyMemberSet, got %v", err)
	}
}

func TestComposeSingleBatch(t *testing.T) {
	t.Parallel()
	members := map[int64]roster.Member{
		1: {ID: 1, Username: "alice"},
		2: {ID: 2, FirstName: "Bob", LastName: "Smith"},
	}
	batches, err := Compose(members, 0)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if !strings.Contains(batches[0], "(1/1)") {
		t.Fatalf("missing header: %q", batches[0])
	}
	if !strings.Contains(batches[0], "@alice") {
		t.Fatalf("missing username token: %q", batches[0])
	}
	if !strings.Contains(batches[0], `<a href="tg://user?id=2">Bob Smith</a>`) {
		t.Fatalf("missing link token: %q", batches[0])
	}
}

func TestComposeChunking(t *testing.T) {
	t.Parallel()
	members := map[int64]roster.Member{}
	for i := int64(1); i <= 16; i++ {
		members[i] = roster.Member{ID: i, Username: fmt.Sprintf("u%d", i)}
	}
	batches, err := Compose(members, DefaultBatchSize)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if !strings.Contains(batches[0], "(1/2)") || !strings.Contains(batches[1], "(2/2)") {
		t.Fatalf("bad headers: %q / %q", firstLine(batches[0]), firstLine(batches[1]))
	}
	if n := tokenCount(batches[0]); n != 15 {
		t.Fatalf("first batch has %d tokens, want 15", n)
	}
	if n := tokenCount(batches[1]); n != 1 {
		t.Fatalf("last batch has %d tokens, want 1", n)
	}
}

func TestComposeCoversEveryMemberOnce(t *testing.T) {
	t.Parallel()
	members := map[int64]roster.Member{}
	for i := int64(1); i <= 40; i++ {
		members[i] = roster.Member{ID: i, Username: fmt.Sprintf("u%d", i)}
	}

	batches, err := Compose(members, DefaultBatchSize)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	seen := map[string]int{}
	for _, b := range batches {
		n := tokenCount(b)
		if n < 1 || n > DefaultBatchSize {
			t.Fatalf("batch size %d out of [1,%d]", n, DefaultBatchSize)
		}
		for _, tok := range strings.Fields(body(b)) {
			seen[tok]++
		}
	}
	if len(seen) != len(members) {
		t.Fatalf("expected %d distinct tokens, got %d", len(members), len(seen))
	}
	for tok, n := range seen {
		if n != 1 {
			t.Fatalf("token %q appears %d times", tok, n)
		}
	}
}

func TestComposeIdempotent(t *testing.T) {
	t.Parallel()
	members := map[int64]roster.Member{}
	for i := int64(1); i <= 23; i++ {
		members[i] = roster.Member{ID: i, Username: fmt.Sprintf("u%d", i)}
	}
	a, err := Compose(members, 10)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	b, err := Compose(members, 10)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("batch counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("batch %d differs:\n%q\n%q", i, a[i], b[i])
		}
	}
}

// body strips the header line; tokens in these tests are all @usernames so
// a whitespace split is safe.
func body(batch string) string {
	if i := strings.IndexByte(batch, '\n'); i >= 0 {
		return batch[i+1:]
	}
	return ""
}

func firstLine(batch string) string {
	if i := strings.IndexByte(batch, '\n'); i >= 0 {
		return batch[:i]
	}
	return batch
}

func tokenCount(batch string) int {
	return len(strings.Fields(body(batch)))
}
