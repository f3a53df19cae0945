package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/card-dungeon/internal/models"
)

func cardKeys(cards []models.Card) []string {
	keys := make([]string, len(cards))
	for i, c := range cards {
		keys[i] = string(c.Suit) + "-" + c.Rank
	}
	return keys
}

func TestNewStandardDeck(t *testing.T) {
	cards := NewStandardDeck()
	require.Len(t, cards, 54)

	jokers := 0
	for _, c := range cards {
		assert.NotEmpty(t, c.ID)
		if c.Suit == models.SuitJoker {
			jokers++
		}
	}
	assert.Equal(t, 2, jokers)
}

func TestNewStarterDeck(t *testing.T) {
	cards := NewStarterDeck()
	require.Len(t, cards, 20)

	// 4花色 × A-5，每种组合恰好一张
	seen := map[string]int{}
	for _, c := range cards {
		seen[string(c.Suit)+"-"+c.Rank]++
		assert.GreaterOrEqual(t, c.Value, 1)
		assert.LessOrEqual(t, c.Value, 5)
		assert.NotEqual(t, models.SuitJoker, c.Suit)
	}
	assert.Len(t, seen, 20)
	for key, n := range seen {
		assert.Equal(t, 1, n, key)
	}
}

func TestRankValue(t *testing.T) {
	tests := []struct {
		rank string
		want int
	}{
		{"A", 1},
		{"2", 2},
		{"5", 5},
		{"10", 10},
		{"J", 10},
		{"Q", 10},
		{"K", 10},
		{"JOKER", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RankValue(tt.rank), tt.rank)
	}
}

func TestShuffle_Deterministic(t *testing.T) {
	cards := NewStarterDeck()

	// 相同种子产生完全相同的排列
	a := Shuffle(cards, "seed-alpha")
	b := Shuffle(cards, "seed-alpha")
	assert.Equal(t, cardKeys(a), cardKeys(b))

	// 不同种子产生不同排列
	c := Shuffle(cards, "seed-beta")
	assert.NotEqual(t, cardKeys(a), cardKeys(c))
}

func TestShuffle_DoesNotModifyInput(t *testing.T) {
	cards := NewStarterDeck()
	before := cardKeys(cards)

	shuffled := Shuffle(cards, "any-seed")
	assert.Equal(t, before, cardKeys(cards))
	assert.Len(t, shuffled, len(cards))

	// 洗牌只换顺序不换牌
	seen := map[string]bool{}
	for _, c := range shuffled {
		seen[string(c.Suit)+"-"+c.Rank] = true
	}
	assert.Len(t, seen, 20)
}

func TestDraw(t *testing.T) {
	cards := NewStarterDeck()

	drawn, remaining := Draw(cards, 4)
	assert.Len(t, drawn, 4)
	assert.Len(t, remaining, 16)
	assert.Equal(t, cardKeys(cards[:4]), cardKeys(drawn))

	// 超量抽取按实际数量截断
	drawn, remaining = Draw(cards[:2], 5)
	assert.Len(t, drawn, 2)
	assert.Empty(t, remaining)

	drawn, remaining = Draw(nil, 1)
	assert.Empty(t, drawn)
	assert.Empty(t, remaining)
}

func TestReshuffleDiscard(t *testing.T) {
	discard := NewStarterDeck()[:6]
	reshuffled := ReshuffleDiscard(discard, "game-1-reshuffle")
	assert.Len(t, reshuffled, 6)

	seen := map[string]bool{}
	for _, c := range reshuffled {
		seen[string(c.Suit)+"-"+c.Rank] = true
	}
	for _, c := range discard {
		assert.True(t, seen[string(c.Suit)+"-"+c.Rank])
	}
}

func TestHashSeed(t *testing.T) {
	// 同一种子稳定，不同种子（几乎总是）不同
	assert.Equal(t, HashSeed("lobby-1-12345"), HashSeed("lobby-1-12345"))
	assert.NotEqual(t, HashSeed("lobby-1-12345"), HashSeed("lobby-1-12346"))
	assert.Zero(t, HashSeed(""))
}

func TestSeededFloat(t *testing.T) {
	for _, seed := range []string{"a", "seed-1-1", "游戏-种子", ""} {
		v := SeededFloat(seed)
		assert.GreaterOrEqual(t, v, 0.0, seed)
		assert.Less(t, v, 1.0, seed)
		assert.Equal(t, v, SeededFloat(seed), seed)
	}
}

func TestSeededIndex(t *testing.T) {
	for n := 1; n <= 8; n++ {
		idx := SeededIndex("reward-seed", n)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, n)
	}
	assert.Zero(t, SeededIndex("x", 0))
}
