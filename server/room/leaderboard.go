package room

import (
	"cmp"
	"math"
	"slices"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
)

const leaderboardSize = 10

type standing struct {
	id    string
	name  string
	mass  float64
	kills int
}

// rankStandings sorts by mass descending, then player id, and keeps the top n
func rankStandings(in []standing, n int) []protocol.LeaderboardEntry {
	slices.SortFunc(in, func(a, b standing) int {
		if c := cmp.Compare(b.mass, a.mass); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	if len(in) > n {
		in = in[:n]
	}
	out := make([]protocol.LeaderboardEntry, len(in))
	for i, s := range in {
		out[i] = protocol.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: s.id,
			Name:     s.name,
			Score:    int(math.Floor(s.mass)),
			Kills:    s.kills,
		}
	}
	return out
}
