// Package deck 提供确定性的卡组工具：
// 种子洗牌、抽牌、弃牌堆重洗，全部为不修改输入的纯函数。
package deck

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/card-dungeon/internal/models"
)

var suits = []models.CardSuit{
	models.SuitHearts,
	models.SuitDiamonds,
	models.SuitClubs,
	models.SuitSpades,
}

var ranks = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// starterRanks 新手卡组只用A-5，前期卡组更小更极端
var starterRanks = []string{"A", "2", "3", "4", "5"}

// RankValue 返回牌面点数
func RankValue(rank string) int {
	switch rank {
	case "A":
		return 1
	case "J", "Q", "K":
		return 10
	case "JOKER":
		return 0
	default:
		n, _ := strconv.Atoi(rank)
		return n
	}
}

func newCard(suit models.CardSuit, rank string) models.Card {
	return models.Card{
		ID:    uuid.NewString(),
		Suit:  suit,
		Rank:  rank,
		Value: RankValue(rank),
	}
}

// NewStandardDeck 创建标准54张牌（52张+2张王）
func NewStandardDeck() []models.Card {
	cards := make([]models.Card, 0, 54)
	for _, suit := range suits {
		for _, rank := range ranks {
			cards = append(cards, newCard(suit, rank))
		}
	}
	cards = append(cards, newCard(models.SuitJoker, "JOKER"))
	cards = append(cards, newCard(models.SuitJoker, "JOKER"))
	return cards
}

// NewStarterDeck 创建新手卡组（4花色×A-5共20张，无王）
func NewStarterDeck() []models.Card {
	cards := make([]models.Card, 0, len(suits)*len(starterRanks))
	for _, suit := range suits {
		for _, rank := range starterRanks {
			cards = append(cards, newCard(suit, rank))
		}
	}
	return cards
}

// NewRewardPool 创建奖励候选池（与新手卡组同范围）
func NewRewardPool() []models.Card {
	return NewStarterDeck()
}

// Shuffle 种子洗牌：相同种子产生完全相同的排列。
// 返回新切片，不修改输入。
func Shuffle(cards []models.Card, seed string) []models.Card {
	shuffled := make([]models.Card, len(cards))
	copy(shuffled, cards)

	rng := newRNG(HashSeed(seed))
	for i := len(shuffled) - 1; i > 0; i-- {
		j := int(rng.next() * float64(i+1))
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// Draw 抽取前count张，返回抽到的牌和剩余牌堆，不修改输入
func Draw(cards []models.Card, count int) (drawn, remaining []models.Card) {
	if count > len(cards) {
		count = len(cards)
	}
	drawn = make([]models.Card, count)
	copy(drawn, cards[:count])
	remaining = make([]models.Card, len(cards)-count)
	copy(remaining, cards[count:])
	return drawn, remaining
}

// ReshuffleDiscard 弃牌堆重洗为新牌堆。
// 种子拼接当前时间，避免一局内重复出现相同的重洗顺序。
func ReshuffleDiscard(discard []models.Card, seed string) []models.Card {
	return Shuffle(discard, fmt.Sprintf("%s%d", seed, time.Now().UnixMilli()))
}
