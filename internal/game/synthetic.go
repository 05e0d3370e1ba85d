package game

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// botFactory fills the table with display-only wagers. Every one of them is
// flagged Synthetic so clients can render them as bots.
type botFactory struct {
	count int
	rng   *rand.Rand
}

func newBotFactory(count int, rng *rand.Rand) *botFactory {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return &botFactory{count: count, rng: rng}
}

func (f *botFactory) generate(nonce int, now time.Time) []*Wager {
	out := make([]*Wager, 0, f.count)
	for i := 0; i < f.count; i++ {
		w := &Wager{
			WagerID:         fmt.Sprintf("bot-%d-%d", nonce, i),
			OwnerID:         fmt.Sprintf("bot:%02d", i),
			DisplayName:     fmt.Sprintf("Bot %02d", i+1),
			Stake:           float64(1+f.rng.IntN(200)) * 0.5,
			Synthetic:       true,
			Status:          StatusActive,
			EntryMultiplier: MinMultiplier,
			PlacedAt:        now,
		}
		// A fifth of the bots ride until the crash.
		if f.rng.IntN(5) != 0 {
			w.AutoCashout = round2(1.1 + f.rng.Float64()*4.9)
		}
		out = append(out, w)
	}
	return out
}
