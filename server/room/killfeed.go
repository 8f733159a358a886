package room

import "time"

const killFeedSize = 10

// KillEntry is one line of the kill feed
type KillEntry struct {
	Killer     string
	Victim     string
	KillerMass float64
	At         time.Time
}

// KillFeed keeps the most recent kills, oldest dropped first
type KillFeed struct {
	entries []KillEntry
	limit   int
}

func newKillFeed(limit int) *KillFeed {
	return &KillFeed{entries: make([]KillEntry, 0, limit), limit: limit}
}

// Add appends an entry, evicting the oldest beyond the limit
func (f *KillFeed) Add(e KillEntry) {
	if len(f.entries) == f.limit {
		copy(f.entries, f.entries[1:])
		f.entries = f.entries[:f.limit-1]
	}
	f.entries = append(f.entries, e)
}

// Entries returns the feed oldest first
func (f *KillFeed) Entries() []KillEntry {
	return append([]KillEntry(nil), f.entries...)
}
