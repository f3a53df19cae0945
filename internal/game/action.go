package game

// ActionType 玩家行动类型
type ActionType string

const (
	ActionPlayCard ActionType = "PLAY_CARD"
	ActionEndTurn  ActionType = "END_TURN"
)

// Action 玩家在计划窗口内提交的行动。
// 确认前可以反复覆盖，确认后锁定。
type Action struct {
	Type      ActionType `json:"type" binding:"required"`
	CardID    string     `json:"card_id,omitempty"`
	TargetIDs []uint     `json:"target_ids,omitempty"`
}

// IsPlayCard 是否为出牌行动
func (a Action) IsPlayCard() bool {
	return a.Type == ActionPlayCard && a.CardID != ""
}
