// Package enemy 提供敌人生成与简单AI：
// 按层数缩放属性、决定每层敌人数量和类型组合、生成公开意图。
package enemy

import (
	"math"
	"math/rand"

	"github.com/wfunc/card-dungeon/internal/models"
)

// baseStats 敌人基础属性
type baseStats struct {
	HP     int
	Damage int
}

var enemyTypes = map[models.EnemyType]baseStats{
	models.EnemyGoblin: {HP: 20, Damage: 3},
	models.EnemyOrc:    {HP: 30, Damage: 4},
	models.EnemyTroll:  {HP: 40, Damage: 5},
}

// tiers 解锁顺序：每3层解锁一档
var tiers = []models.EnemyType{
	models.EnemyGoblin,
	models.EnemyOrc,
	models.EnemyTroll,
}

// Stats 生成的敌人属性
type Stats struct {
	Type   models.EnemyType
	HP     int
	MaxHP  int
	Intent models.Intent
}

// Generate 按层数生成敌人属性。
// 前期加成从+15%线性衰减到第4层归零；第4层后改用更平缓的
// 增长曲线，避免血量和伤害指数爆炸。
func Generate(typ models.EnemyType, floor int) Stats {
	base := enemyTypes[typ]

	earlyBoost := math.Max(1, 1.15-0.05*math.Max(0, float64(floor-1)))
	earlyFloors := math.Min(math.Max(0, float64(floor-1)), 3) // 第1-4层
	lateFloors := math.Max(0, float64(floor-4))               // 第5层起
	hpMultiplier := earlyBoost * math.Pow(1.07, earlyFloors) * math.Pow(1.03, lateFloors)
	damageMultiplier := earlyBoost * math.Pow(1.01, lateFloors)

	hp := scaledStat(base.HP, hpMultiplier)
	damage := scaledStat(base.Damage, damageMultiplier)

	return Stats{
		Type:   typ,
		HP:     hp,
		MaxHP:  hp,
		Intent: GenerateIntent(typ, damage, nil),
	}
}

// scaledStat 向下取整，加极小补偿避免二进制浮点误差丢1点
func scaledStat(base int, multiplier float64) int {
	return int(math.Floor(float64(base)*multiplier + 1e-9))
}

// GenerateIntent 生成下一回合意图：80%攻击（伤害±1浮动，随机挑一个
// 存活玩家），20%防御（自疗一半基础伤害）。
func GenerateIntent(typ models.EnemyType, baseDamage int, candidates []uint) models.Intent {
	if rand.Float64() < 0.8 {
		intent := models.Intent{
			Type:   models.IntentAttack,
			Amount: baseDamage + rand.Intn(3) - 1,
		}
		if len(candidates) > 0 {
			intent.Targets = []uint{candidates[rand.Intn(len(candidates))]}
		}
		return intent
	}
	return models.Intent{
		Type:   models.IntentDefend,
		Amount: baseDamage / 2,
	}
}

// TurnResult 敌人行动结果
type TurnResult struct {
	Action     models.IntentType
	Value      int
	Targets    []uint
	NextIntent models.Intent
}

// ExecuteTurn 执行当前意图并预生成下一回合意图。
// 下一回合伤害基数取 max(1, maxHp/10)，与当前血量无关。
func ExecuteTurn(e *models.EnemyState) TurnResult {
	action := models.IntentAttack
	if e.Intent.Type == models.IntentDefend {
		action = models.IntentDefend
	}

	baseDamage := e.MaxHP / 10
	if baseDamage < 1 {
		baseDamage = 1
	}

	return TurnResult{
		Action:     action,
		Value:      e.Intent.Amount,
		Targets:    e.Intent.Targets,
		NextIntent: GenerateIntent(e.Type, baseDamage, nil),
	}
}

// Count 计算某一层的敌人数量：随层数和存活人数增长，上限4。
func Count(floor, alivePlayers int) int {
	baseCount := math.Min(1+math.Floor(float64(floor-1)/2), 4)
	// 随玩家数缩放；调低系数避免双人队在第4层附近陡增
	playerFactor := math.Max(0.6, float64(alivePlayers)/3)
	count := int(math.Round(baseCount * playerFactor))
	if count < 1 {
		count = 1
	}
	if count > 4 {
		count = 4
	}
	return count
}

// SelectTypes 选择本层敌人类型组合。
// 高层解锁时保证至少一个最高档和一个次高档，其余按权重随机，
// 层数越高越偏向强敌。
func SelectTypes(floor, count int) []models.EnemyType {
	maxTier := (floor - 1) / 3
	if maxTier > len(tiers)-1 {
		maxTier = len(tiers) - 1
	}
	allowed := tiers[:maxTier+1]

	if len(allowed) == 1 {
		picks := make([]models.EnemyType, count)
		for i := range picks {
			picks[i] = allowed[0]
		}
		return picks
	}

	weights := make([]float64, len(allowed))
	for i := range allowed {
		weights[i] = 1 + float64(i)*math.Max(1, float64(floor)/6)
	}

	picks := make([]models.EnemyType, 0, count)
	if count > 0 {
		picks = append(picks, allowed[len(allowed)-1])
	}
	if count > 1 {
		picks = append(picks, allowed[len(allowed)-2])
	}
	for len(picks) < count {
		picks = append(picks, weightedPick(allowed, weights))
	}
	return picks[:count]
}

// weightedPick 按权重随机挑选类型
func weightedPick(types []models.EnemyType, weights []float64) models.EnemyType {
	var total float64
	for _, w := range weights {
		total += w
	}
	roll := rand.Float64() * total
	for i, t := range types {
		roll -= weights[i]
		if roll <= 0 {
			return t
		}
	}
	return types[len(types)-1]
}
