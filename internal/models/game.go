package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// GamePhase 游戏阶段
type GamePhase string

const (
	PhaseBattle   GamePhase = "BATTLE"    // 战斗阶段（计划回合循环）
	PhaseReward   GamePhase = "REWARD"    // 奖励选卡阶段
	PhaseGameOver GamePhase = "GAME_OVER" // 终局（不可逆）
)

// CardSuit 卡牌花色（决定效果类型）
type CardSuit string

const (
	SuitHearts   CardSuit = "HEARTS"   // 治疗自己/队友
	SuitDiamonds CardSuit = "DIAMONDS" // 护盾自己/队友
	SuitClubs    CardSuit = "CLUBS"    // 群体伤害（最多3个目标）
	SuitSpades   CardSuit = "SPADES"   // 单体伤害×2
	SuitJoker    CardSuit = "JOKER"
)

// Card 卡牌（创建后不可变）
type Card struct {
	ID    string   `json:"id"`
	Suit  CardSuit `json:"suit"`
	Rank  string   `json:"rank"`
	Value int      `json:"value"`
}

// CardList 卡牌数组JSON字段
type CardList []Card

// Value 实现driver.Valuer接口
func (l CardList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]Card{})
	}
	return json.Marshal(l)
}

// Scan 实现sql.Scanner接口
func (l *CardList) Scan(value interface{}) error {
	if value == nil {
		*l = CardList{}
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, l)
}

// BonusType 增益类型
type BonusType string

// BonusShield 护盾增益（按旧到新顺序吸收伤害）
const BonusShield BonusType = "SHIELD"

// Bonus 玩家增益条目
type Bonus struct {
	Type  BonusType `json:"type"`
	Value int       `json:"value"`
}

// BonusList 增益数组JSON字段
type BonusList []Bonus

// Value 实现driver.Valuer接口
func (l BonusList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]Bonus{})
	}
	return json.Marshal(l)
}

// Scan 实现sql.Scanner接口
func (l *BonusList) Scan(value interface{}) error {
	if value == nil {
		*l = BonusList{}
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, l)
}

// IntentType 敌人意图类型
type IntentType string

const (
	IntentAttack  IntentType = "ATTACK"
	IntentDefend  IntentType = "DEFEND"
	IntentSpecial IntentType = "SPECIAL"
)

// Intent 敌人预告的下一步行动（对客户端公开）。
// 数值字段叫Amount，Value留给driver.Valuer
type Intent struct {
	Type    IntentType `json:"type"`
	Amount  int        `json:"value"`
	Targets []uint     `json:"targets,omitempty"` // 目标玩家的用户ID
}

// Value 实现driver.Valuer接口
func (i Intent) Value() (driver.Value, error) {
	return json.Marshal(i)
}

// Scan 实现sql.Scanner接口
func (i *Intent) Scan(value interface{}) error {
	if value == nil {
		*i = Intent{}
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, i)
}

// Game 游戏对局表（一个大厅最多一局）
type Game struct {
	BaseModel
	LobbyID      uint       `gorm:"uniqueIndex;not null" json:"lobby_id"`
	Phase        GamePhase  `gorm:"size:20;not null;default:'BATTLE'" json:"phase"`
	CurrentFloor int        `gorm:"default:1" json:"current_floor"`
	Seed         string     `gorm:"size:64;not null" json:"seed"`
	TurnOrder    StringList `gorm:"type:json" json:"turn_order"`
	CurrentTurn  int        `gorm:"default:0" json:"current_turn"`

	// 关联
	Players []PlayerState `gorm:"foreignKey:GameID" json:"players"`
	Enemies []EnemyState  `gorm:"foreignKey:GameID" json:"enemies"`
}

// AlivePlayers 返回存活玩家（按行动顺序）
func (g *Game) AlivePlayers() []*PlayerState {
	alive := make([]*PlayerState, 0, len(g.Players))
	for i := range g.Players {
		if g.Players[i].IsAlive {
			alive = append(alive, &g.Players[i])
		}
	}
	return alive
}

// AliveEnemies 返回存活敌人（按行动顺序）
func (g *Game) AliveEnemies() []*EnemyState {
	alive := make([]*EnemyState, 0, len(g.Enemies))
	for i := range g.Enemies {
		if g.Enemies[i].HP > 0 {
			alive = append(alive, &g.Enemies[i])
		}
	}
	return alive
}

// PlayerState 玩家对局状态表
type PlayerState struct {
	BaseModel
	GameID  uint      `gorm:"not null;index" json:"game_id"`
	UserID  uint      `gorm:"not null;index" json:"user_id"`
	HP      int       `gorm:"not null" json:"hp"`
	MaxHP   int       `gorm:"not null" json:"max_hp"`
	Deck    CardList  `gorm:"type:json" json:"deck"`
	Hand    CardList  `gorm:"type:json" json:"hand"`
	Discard CardList  `gorm:"type:json" json:"discard"`
	Bonuses BonusList `gorm:"type:json" json:"bonuses"`
	IsAlive bool      `gorm:"default:true" json:"is_alive"`
	Order   int       `gorm:"not null" json:"order"`
}

// EnemyType 敌人类型
type EnemyType string

const (
	EnemyGoblin EnemyType = "GOBLIN"
	EnemyOrc    EnemyType = "ORC"
	EnemyTroll  EnemyType = "TROLL"
)

// EnemyState 敌人对局状态表
type EnemyState struct {
	BaseModel
	GameID uint      `gorm:"not null;index" json:"game_id"`
	Type   EnemyType `gorm:"size:20;not null" json:"type"`
	HP     int       `gorm:"not null" json:"hp"`
	MaxHP  int       `gorm:"not null" json:"max_hp"`
	Intent Intent    `gorm:"type:json" json:"intent"`
	Order  int       `gorm:"not null" json:"order"`
}

// jsonBytes 将数据库原始值转为JSON字节
func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("无法扫描JSON字段")
	}
}
