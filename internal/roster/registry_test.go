package roster

import (
	"errors"
	"sync"
	"testing"

	logx "rollcall/pkg/logx"
)

// memStore keeps snapshots in memory and can be told to fail saves.
type memStore struct {
	mu       sync.Mutex
	snap     Snapshot
	failSave bool
	saves    int
}

func (s *memStore) Load() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return Snapshot{}, nil
	}
	return s.snap.Clone(), nil
}

func (s *memStore) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failSave {
		return errors.New("disk full")
	}
	s.snap = snap.Clone()
	return nil
}

func (s *memStore) Close() error { return nil }

func TestGetUnknownChatIsEmpty(t *testing.T) {
	t.Parallel()
	r := New(nil, logx.Nop())
	got := r.Get(42)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", got)
	}
}

func TestAddLastWriteWins(t *testing.T) {
	t.Parallel()
	r := New(nil, logx.Nop())
	r.Add(1, Member{ID: 9, Username: "old", FirstName: "Old"})
	r.Add(1, Member{ID: 9, Username: "new"})

	got := r.Get(1)[9]
	if got.Username != "new" {
		t.Fatalf("Username = %q, want %q", got.Username, "new")
	}
	// Whole-record replacement, not a field merge.
	if got.FirstName != "" {
		t.Fatalf("FirstName = %q, want empty", got.FirstName)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()
	r := New(nil, logx.Nop())
	r.Add(1, Member{ID: 1, Username: "a"})
	r.Add(1, Member{ID: 2, Username: "b"})
	r.Clear(1)
	if got := r.Get(1); len(got) != 0 {
		t.Fatalf("expected empty after clear, got %d members", len(got))
	}
	// Clearing an unknown chat is a no-op, not an error or a save.
	st := &memStore{}
	r2 := New(st, logx.Nop())
	before := st.saves
	r2.Clear(404)
	if st.saves != before {
		t.Fatalf("clear of unknown chat triggered a save")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()
	r := New(nil, logx.Nop())
	r.Add(1, Member{ID: 1, Username: "a"})

	got := r.Get(1)
	got[99] = Member{ID: 99, Username: "intruder"}
	if len(r.Get(1)) != 1 {
		t.Fatal("mutating the returned map leaked into the registry")
	}
}

func TestPersistOnMutationRoundTrip(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	r := New(st, logx.Nop())
	r.Add(1, Member{ID: 1, Username: "alice"})
	r.Add(1, Member{ID: 2, FirstName: "Bob", LastName: "Smith"})
	r.Add(2, Member{ID: 3, Username: "carol"})
	r.Clear(2)

	// A second registry over the same store sees the same state.
	r2 := New(st, logx.Nop())
	if got := r2.Get(1); len(got) != 2 || got[1].Username != "alice" || got[2].LastName != "Smith" {
		t.Fatalf("unexpected reload state: %v", got)
	}
	if got := r2.Get(2); len(got) != 0 {
		t.Fatalf("cleared chat resurrected: %v", got)
	}
}

func TestSaveFailureIsSwallowedButObservable(t *testing.T) {
	t.Parallel()
	st := &memStore{failSave: true}
	var hookErr error
	r := New(st, logx.Nop(), WithSaveErrorHook(func(err error) { hookErr = err }))

	// The caller-visible path must not fail.
	r.Add(1, Member{ID: 1, Username: "alice"})
	if got := r.Get(1)[1].Username; got != "alice" {
		t.Fatalf("in-memory state lost on save failure: %q", got)
	}
	if r.SaveFailures() != 1 {
		t.Fatalf("SaveFailures = %d, want 1", r.SaveFailures())
	}
	if hookErr == nil {
		t.Fatal("save error hook not invoked")
	}

	// Durability recovers with the next successful save.
	st.mu.Lock()
	st.failSave = false
	st.mu.Unlock()
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	r2 := New(st, logx.Nop())
	if len(r2.Get(1)) != 1 {
		t.Fatal("flush after failure did not restore durability")
	}
}

func TestResyncRejectsWhenSelfNotAdmin(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	r := New(st, logx.Nop())
	r.Add(1, Member{ID: 10, Username: "existing"})

	admins := []Member{{ID: 100, Username: "a"}, {ID: 101, Username: "b"}}
	if _, err := r.Resync(1, 999, admins); !errors.Is(err, ErrNotAdministrator) {
		t.Fatalf("expected ErrNotAdministrator, got %v", err)
	}
	// No mutation on rejection.
	got := r.Get(1)
	if len(got) != 1 || got[10].Username != "existing" {
		t.Fatalf("registry mutated by rejected resync: %v", got)
	}
}

func TestResyncReplacesTrackedSet(t *testing.T) {
	t.Parallel()
	r := New(nil, logx.Nop())
	for i := int64(1); i <= 5; i++ {
		r.Add(1, Member{ID: i, Username: "old"})
	}

	const selfID = 777
	admins := []Member{
		{ID: selfID, Username: "rollcall_bot"},
		{ID: 200, Username: "mod1"},
		{ID: 201, FirstName: "Mod", LastName: "Two"},
	}
	count, err := r.Resync(1, selfID, admins)
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	got := r.Get(1)
	if len(got) != 3 {
		t.Fatalf("tracked set size = %d, want 3", len(got))
	}
	for _, a := range admins {
		if got[a.ID] != a {
			t.Fatalf("admin %d = %+v, want %+v", a.ID, got[a.ID], a)
		}
	}
	for i := int64(1); i <= 5; i++ {
		if _, ok := got[i]; ok {
			t.Fatalf("old member %d survived resync", i)
		}
	}
}

func TestConcurrentAddAndGet(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	r := New(st, logx.Nop())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Add(int64(g%2), Member{ID: int64(g*1000 + i), Username: "u"})
				_ = r.Get(int64(g % 2))
			}
		}()
	}
	wg.Wait()

	chats, members := r.Stats()
	if chats != 2 || members != 400 {
		t.Fatalf("stats = (%d chats, %d members), want (2, 400)", chats, members)
	}
}
