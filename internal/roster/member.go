package roster

// Member is the stored identity of one participant in one chat.
//
// Username and the name fields may all be empty; the mention layer still
// renders a deterministic (if degenerate) token for such records.
type Member struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Snapshot is the full registry state: chat id -> user id -> member.
type Snapshot map[int64]map[int64]Member

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	cp := make(Snapshot, len(s))
	for chatID, members := range s {
		m := make(map[int64]Member, len(members))
		for id, mem := range members {
			m[id] = mem
		}
		cp[chatID] = m
	}
	return cp
}

// Members counts tracked members across all chats.
func (s Snapshot) Members() int {
	n := 0
	for _, members := range s {
		n += len(members)
	}
	return n
}

// Store persists full registry snapshots.
//
// Implementations live in internal/storage; the interface is declared here,
// on the consuming side, so the registry owns the contract.
type Store interface {
	// Load reads the persisted snapshot. A missing backing file yields an
	// empty snapshot. On a corrupt store it returns the rows parsed before
	// the failure together with the error.
	Load() (Snapshot, error)

	// Save overwrites the persisted state with the given snapshot.
	Save(Snapshot) error

	Close() error
}
