package models

// GameScore 对局成绩表（每个用户每个大厅一条）
//
// Position 记录玩家到达的层数；通关（打穿第50层）记为 -1。
type GameScore struct {
	BaseModel
	UserID   uint `gorm:"not null;index;uniqueIndex:idx_score_user_lobby" json:"user_id"`
	LobbyID  uint `gorm:"not null;index;uniqueIndex:idx_score_user_lobby" json:"lobby_id"`
	Position int  `gorm:"not null" json:"position"`
}

// IsVictory 是否为通关成绩
func (s *GameScore) IsVictory() bool {
	return s.Position == -1
}
