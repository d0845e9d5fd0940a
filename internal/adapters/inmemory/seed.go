package inmemory

import (
	"time"

	"unreplied/internal/domain"
)

// DemoFID is the account the demo graph is built around.
const DemoFID uint64 = 3

// Seed fills s with a small conversation graph for fid DemoFID, with cast
// timestamps relative to now:
//
//	0xde0001 (3)             alice replies, 3 never answers    -> 0xde0001a1 unreplied
//	0xde0002 (3)             bob asks, 3 answers, carol follows up
//	  └ 0xde0002b3 (carol)   reply to 3's answer              -> unreplied
//	0xde0003 (3)             no replies
func Seed(s *Store, now time.Time) {
	s.AddProfiles(
		domain.Profile{FID: DemoFID, Username: "dwr", DisplayName: "Dan", AvatarURL: "https://i.example.com/dwr.png"},
		domain.Profile{FID: 123, Username: "alice", DisplayName: "Alice", AvatarURL: "https://i.example.com/alice.png"},
		domain.Profile{FID: 456, Username: "bob", DisplayName: "Bob"},
		domain.Profile{FID: 789, Username: "carol"},
	)

	at := func(ago time.Duration) time.Time { return now.Add(-ago).UTC() }
	s.Add(
		domain.Cast{Hash: "0xde0001", AuthorFID: DemoFID, Username: "dwr", Text: "what are you building this week?", Timestamp: at(5 * time.Hour)},
		domain.Cast{Hash: "0xde0001a1", AuthorFID: 123, Text: "a feed reader for channels", Timestamp: at(4 * time.Hour), ParentHash: "0xde0001", ParentFID: DemoFID,
			Embeds: []domain.Embed{{URL: "https://example.com/reader"}}},

		domain.Cast{Hash: "0xde0002", AuthorFID: DemoFID, Username: "dwr", Text: "frames v2 is live", Timestamp: at(3 * time.Hour)},
		domain.Cast{Hash: "0xde0002b1", AuthorFID: 456, Text: "does it support tx frames?", Timestamp: at(2 * time.Hour), ParentHash: "0xde0002", ParentFID: DemoFID},
		domain.Cast{Hash: "0xde0002b2", AuthorFID: DemoFID, Text: "yes, docs are up", Timestamp: at(90 * time.Minute), ParentHash: "0xde0002b1", ParentFID: 456},
		domain.Cast{Hash: "0xde0002b3", AuthorFID: 789, Text: "link to the docs?", Timestamp: at(time.Hour), ParentHash: "0xde0002b2", ParentFID: DemoFID},

		domain.Cast{Hash: "0xde0003", AuthorFID: DemoFID, Username: "dwr", Text: "gm", Timestamp: at(30 * time.Minute)},
	)
}
