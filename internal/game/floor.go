package game

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wfunc/card-dungeon/internal/game/deck"
	"github.com/wfunc/card-dungeon/internal/models"
)

// transitionToReward 清场后进入奖励阶段（调用方需持有该局锁）
func (s *GameService) transitionToReward(ctx context.Context, game *models.Game) error {
	if err := s.repo.UpdateFields(ctx, game.ID, map[string]interface{}{
		"phase": models.PhaseReward,
	}); err != nil {
		return err
	}

	updated, err := s.repo.FindByID(ctx, game.ID)
	if err != nil {
		return err
	}

	s.logger.Info("进入奖励阶段",
		zap.Uint("game_id", game.ID),
		zap.Int("floor", updated.CurrentFloor))

	s.notifier.PhaseChange(game.ID, models.PhaseReward)
	s.notifier.GameUpdate(updated)
	return s.startRewardLocked(ctx, game.ID)
}

// transitionToGameOver 终局：写入阶段、结束大厅、落榜单。
// 胜利时名次记-1，失败时记倒下的层数。
func (s *GameService) transitionToGameOver(ctx context.Context, game *models.Game, victory bool) error {
	if err := s.repo.UpdateFields(ctx, game.ID, map[string]interface{}{
		"phase": models.PhaseGameOver,
	}); err != nil {
		return err
	}

	if err := s.lobbyRepo.UpdateStatus(ctx, game.LobbyID, models.LobbyEnded); err != nil {
		return err
	}

	position := game.CurrentFloor
	if victory {
		position = -1
	}
	for i := range game.Players {
		score := &models.GameScore{
			UserID:   game.Players[i].UserID,
			LobbyID:  game.LobbyID,
			Position: position,
		}
		if err := s.scoreRepo.Upsert(ctx, score); err != nil {
			return err
		}
	}

	s.logger.Info("游戏结束",
		zap.Uint("game_id", game.ID),
		zap.Bool("victory", victory),
		zap.Int("floor", game.CurrentFloor))

	updated, err := s.repo.FindByID(ctx, game.ID)
	if err != nil {
		return err
	}
	s.notifier.PhaseChange(game.ID, models.PhaseGameOver)
	s.notifier.GameOver(updated, victory)

	s.rounds.clear(game.ID)
	return nil
}

// advanceToNextFloor 推进到下一层（调用方需持有该局锁）：
// 存活玩家回复一半最大生命，清掉旧敌人按新层重新生成，
// 重建行动顺序并补满手牌，然后开新一轮计划回合。
func (s *GameService) advanceToNextFloor(ctx context.Context, gameID uint) error {
	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	nextFloor := game.CurrentFloor + 1

	for _, p := range game.AlivePlayers() {
		healed := p.HP + p.MaxHP/2
		if healed > p.MaxHP {
			healed = p.MaxHP
		}
		if healed != p.HP {
			if err := s.repo.UpdatePlayerFields(ctx, p.ID, map[string]interface{}{
				"hp": healed,
			}); err != nil {
				return err
			}
		}
	}

	if err := s.repo.DeleteEnemiesByGameID(ctx, gameID); err != nil {
		return err
	}

	alivePlayerIDs := make([]uint, 0, len(game.Players))
	turnOrder := make(models.StringList, 0, len(game.Players)+4)
	for _, p := range game.AlivePlayers() {
		turnOrder = append(turnOrder, fmt.Sprintf("player-%d", p.UserID))
		alivePlayerIDs = append(alivePlayerIDs, p.UserID)
	}

	turnOrder, err = s.spawnEnemies(ctx, gameID, nextFloor, alivePlayerIDs, turnOrder)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateFields(ctx, gameID, map[string]interface{}{
		"current_floor": nextFloor,
		"phase":         models.PhaseBattle,
		"turn_order":    turnOrder,
		"current_turn":  0,
	}); err != nil {
		return err
	}

	if err := s.refillHands(ctx, gameID); err != nil {
		return err
	}

	updated, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}

	s.logger.Info("进入下一层",
		zap.Uint("game_id", gameID),
		zap.Int("floor", nextFloor),
		zap.Int("enemies", len(updated.Enemies)))

	s.notifier.GameUpdate(updated)
	return s.startPlanningLocked(ctx, gameID)
}

// refillHands 把存活玩家的手牌补到上限（不弃现有手牌），
// 牌堆抽空时重洗弃牌堆继续
func (s *GameService) refillHands(ctx context.Context, gameID uint) error {
	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}

	for i := range game.Players {
		p := &game.Players[i]
		if !p.IsAlive || len(p.Hand) >= s.config.HandSize {
			continue
		}

		newHand := append(models.CardList{}, p.Hand...)
		newDeck := append(models.CardList{}, p.Deck...)
		newDiscard := append(models.CardList{}, p.Discard...)

		for len(newHand) < s.config.HandSize {
			if len(newDeck) == 0 {
				newDeck = deck.ReshuffleDiscard(newDiscard, fmt.Sprintf("%d-reshuffle-%d", gameID, p.UserID))
				newDiscard = models.CardList{}
			}
			if len(newDeck) == 0 {
				break
			}
			drawn, remaining := deck.Draw(newDeck, 1)
			newHand = append(newHand, drawn...)
			newDeck = remaining
		}

		if err := s.repo.UpdatePlayerFields(ctx, p.ID, map[string]interface{}{
			"hand":    newHand,
			"deck":    newDeck,
			"discard": newDiscard,
		}); err != nil {
			return err
		}
	}
	return nil
}
