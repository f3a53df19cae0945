package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/wfunc/card-dungeon/internal/errors"
	"github.com/wfunc/card-dungeon/internal/game/deck"
	"github.com/wfunc/card-dungeon/internal/game/enemy"
	"github.com/wfunc/card-dungeon/internal/models"
)

// resolveTimeout 定时器触发结算时的数据库操作超时
const resolveTimeout = 30 * time.Second

// StartPlanningRound 开始新的计划回合。
// 非战斗阶段静默返回；已有回合会被新回合替换（旧定时器停止）。
func (s *GameService) StartPlanningRound(ctx context.Context, gameID uint) error {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()
	return s.startPlanningLocked(ctx, gameID)
}

func (s *GameService) startPlanningLocked(ctx context.Context, gameID uint) error {
	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Phase != models.PhaseBattle {
		return nil
	}

	roundNo := 1
	if prev := s.rounds.getPlanning(gameID); prev != nil {
		roundNo = prev.round + 1
	}

	round := &planningRound{
		gameID:    gameID,
		round:     roundNo,
		endsAt:    time.Now().Add(s.config.PlanningDuration),
		actions:   make(map[uint]Action),
		confirmed: make(map[uint]bool),
	}
	round.timer = time.AfterFunc(s.config.PlanningDuration, func() {
		s.resolveOnTimeout(gameID, round)
	})
	s.rounds.setPlanning(gameID, round)

	if err := s.ensureEnemyTargets(ctx, game); err != nil {
		s.logger.Warn("补齐敌人目标失败", zap.Uint("game_id", gameID), zap.Error(err))
	}

	s.logger.Debug("计划回合开始",
		zap.Uint("game_id", gameID),
		zap.Int("round", roundNo),
		zap.Time("ends_at", round.endsAt))

	s.notifier.PlanningUpdate(planningSnapshot(round))
	return nil
}

// resolveOnTimeout 计划窗口超时后由定时器触发结算
func (s *GameService) resolveOnTimeout(gameID uint, round *planningRound) {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()

	// 提前结算或新回合替换后，过期的定时器直接作废
	if s.rounds.getPlanning(gameID) != round || round.resolved {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	if err := s.resolvePlanningLocked(ctx, round); err != nil {
		s.logger.Error("计划回合超时结算失败", zap.Uint("game_id", gameID), zap.Error(err))
	}
}

// ensureEnemyTargets 给缺少目标的攻击意图补一个存活玩家，
// 保证客户端在回合开始时就能显示敌人目标。
func (s *GameService) ensureEnemyTargets(ctx context.Context, game *models.Game) error {
	alive := game.AlivePlayers()
	if len(alive) == 0 {
		return nil
	}

	changed := false
	for i := range game.Enemies {
		e := &game.Enemies[i]
		if e.HP <= 0 {
			continue
		}
		if e.Intent.Type == models.IntentAttack && len(e.Intent.Targets) == 0 {
			intent := e.Intent
			intent.Targets = []uint{alive[rand.Intn(len(alive))].UserID}
			if err := s.repo.UpdateEnemyFields(ctx, e.ID, map[string]interface{}{
				"intent": intent,
			}); err != nil {
				return err
			}
			changed = true
		}
	}

	if changed {
		updated, err := s.repo.FindByID(ctx, game.ID)
		if err != nil {
			return err
		}
		s.notifier.GameUpdate(updated)
	}
	return nil
}

// SubmitPlannedAction 提交（或覆盖）本回合的计划行动。
// 确认之前可以反复修改，确认后或窗口关闭后拒绝。
func (s *GameService) SubmitPlannedAction(ctx context.Context, gameID, userID uint, action Action) error {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()

	round := s.rounds.getPlanning(gameID)
	if round == nil {
		return apperrors.New(apperrors.ErrRoundNotActive)
	}
	if time.Now().After(round.endsAt) {
		return apperrors.New(apperrors.ErrRoundClosed)
	}
	if round.confirmed[userID] {
		return apperrors.New(apperrors.ErrActionConfirmed)
	}

	round.actions[userID] = action
	s.notifier.PlanningUpdate(planningSnapshot(round))
	return nil
}

// ConfirmPlannedAction 确认本回合行动（没提交过视为跳过）。
// 所有存活玩家都确认后立即提前结算，不等窗口超时。
func (s *GameService) ConfirmPlannedAction(ctx context.Context, gameID, userID uint) error {
	mu := s.rounds.gameMu(gameID)
	mu.Lock()
	defer mu.Unlock()

	round := s.rounds.getPlanning(gameID)
	if round == nil {
		return apperrors.New(apperrors.ErrRoundNotActive)
	}
	// 窗口刚关闭时确认静默忽略，结算马上会自动确认所有人
	if time.Now().After(round.endsAt) {
		return nil
	}

	round.confirmed[userID] = true
	s.notifier.PlanningUpdate(planningSnapshot(round))
	return s.maybeResolveEarly(ctx, round)
}

// maybeResolveEarly 全体存活玩家确认后提前结算。
// 存活名单每次都从数据库取最新值，避免死亡玩家卡住回合。
func (s *GameService) maybeResolveEarly(ctx context.Context, round *planningRound) error {
	game, err := s.repo.FindByID(ctx, round.gameID)
	if err != nil {
		return err
	}

	for _, p := range game.AlivePlayers() {
		if !round.confirmed[p.UserID] {
			return nil
		}
	}

	if round.timer != nil {
		round.timer.Stop()
	}
	return s.resolvePlanningLocked(ctx, round)
}

// resolvePlanningLocked 结算计划回合（调用方需持有该局锁）。
// 顺序：自动确认缺席玩家 → 按行动顺序出牌 → 敌人行动 →
// 终局判定 → 弃牌重抽 → 开下一回合。恰好执行一次。
func (s *GameService) resolvePlanningLocked(ctx context.Context, round *planningRound) (err error) {
	if round.resolved {
		return nil
	}
	round.resolved = true
	// 结算中途失败时回滚标记并注销回合，
	// 否则回合永远卡在已结算状态，本局再也无法推进
	defer func() {
		if err != nil {
			round.resolved = false
			s.rounds.clearPlanning(round.gameID, round)
		}
	}()

	game, err := s.repo.FindByID(ctx, round.gameID)
	if err != nil {
		return err
	}
	if game.Phase != models.PhaseBattle {
		s.rounds.clearPlanning(round.gameID, round)
		return nil
	}

	alive := game.AlivePlayers()

	// 没确认的存活玩家自动确认（未提交行动的视为跳过）
	for _, p := range alive {
		round.confirmed[p.UserID] = true
	}
	s.notifier.PlanningUpdate(planningSnapshot(round))

	// 按行动顺序逐个出牌；单个玩家出牌失败不中断整轮结算
	for _, p := range alive {
		action, ok := round.actions[p.UserID]
		if !ok || !action.IsPlayCard() {
			continue
		}
		if err := s.applyPlayerCard(ctx, round.gameID, p.UserID, action); err != nil {
			s.logger.Warn("玩家出牌失败",
				zap.Uint("game_id", round.gameID),
				zap.Uint("user_id", p.UserID),
				zap.String("card_id", action.CardID),
				zap.Error(err))
		}
	}

	// 敌人行动各一次（用最新状态，本轮已死的敌人不再出手）
	afterCards, err := s.repo.FindByID(ctx, round.gameID)
	if err != nil {
		return err
	}
	for i := range afterCards.Enemies {
		if afterCards.Enemies[i].HP <= 0 {
			continue
		}
		if err := s.applyEnemyIntent(ctx, round.gameID, afterCards.Enemies[i].ID); err != nil {
			return err
		}
	}

	updated, err := s.repo.FindByID(ctx, round.gameID)
	if err != nil {
		return err
	}

	// 终局判定：清场优先于全灭
	if len(updated.AliveEnemies()) == 0 {
		s.rounds.clearPlanning(round.gameID, round)
		if updated.CurrentFloor >= s.config.MaxFloor {
			return s.transitionToGameOver(ctx, updated, true)
		}
		return s.transitionToReward(ctx, updated)
	}
	if len(updated.AlivePlayers()) == 0 {
		s.rounds.clearPlanning(round.gameID, round)
		return s.transitionToGameOver(ctx, updated, false)
	}

	if err := s.discardHandsAndRedraw(ctx, round.gameID); err != nil {
		return err
	}
	return s.startPlanningLocked(ctx, round.gameID)
}

// applyPlayerCard 结算单个玩家的出牌
func (s *GameService) applyPlayerCard(ctx context.Context, gameID, userID uint, action Action) error {
	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Phase != models.PhaseBattle {
		return nil
	}

	var player *models.PlayerState
	for i := range game.Players {
		if game.Players[i].UserID == userID {
			player = &game.Players[i]
			break
		}
	}
	if player == nil || !player.IsAlive {
		return nil
	}

	if err := s.playCard(ctx, gameID, player, action.CardID, action.TargetIDs); err != nil {
		return err
	}

	updated, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	s.notifier.GameUpdate(updated)
	return nil
}

// playCard 出牌：按花色结算效果，之后把牌从手牌移到弃牌堆。
// 红桃治疗、方片护盾（可指定队友，默认自己）；
// 黑桃单体双倍伤害、梅花最多3个目标群伤。
func (s *GameService) playCard(ctx context.Context, gameID uint, player *models.PlayerState, cardID string, targetIDs []uint) error {
	cardIndex := -1
	for i, c := range player.Hand {
		if c.ID == cardID {
			cardIndex = i
			break
		}
	}
	if cardIndex == -1 {
		return apperrors.New(apperrors.ErrCardNotFound)
	}

	card := player.Hand[cardIndex]
	newHand := make(models.CardList, 0, len(player.Hand)-1)
	newHand = append(newHand, player.Hand[:cardIndex]...)
	newHand = append(newHand, player.Hand[cardIndex+1:]...)
	newDiscard := append(models.CardList{}, player.Discard...)
	newDiscard = append(newDiscard, card)

	switch card.Suit {
	case models.SuitHearts, models.SuitDiamonds:
		// 目标是玩家状态ID，最多一个；无效或缺省时落到自己
		fresh, err := s.repo.FindByID(ctx, gameID)
		if err != nil {
			return err
		}
		target := player
		for _, a := range fresh.AlivePlayers() {
			if a.ID == player.ID {
				target = a
				break
			}
		}
		if requested := uniqueIDs(targetIDs, 1); len(requested) > 0 {
			for _, a := range fresh.AlivePlayers() {
				if a.ID == requested[0] {
					target = a
					break
				}
			}
		}

		if card.Suit == models.SuitHearts {
			healed := target.HP + card.Value
			if healed > target.MaxHP {
				healed = target.MaxHP
			}
			if err := s.repo.UpdatePlayerFields(ctx, target.ID, map[string]interface{}{
				"hp": healed,
			}); err != nil {
				return err
			}
		} else {
			bonuses := append(models.BonusList{}, target.Bonuses...)
			bonuses = append(bonuses, models.Bonus{Type: models.BonusShield, Value: card.Value})
			if err := s.repo.UpdatePlayerFields(ctx, target.ID, map[string]interface{}{
				"bonuses": bonuses,
			}); err != nil {
				return err
			}
		}

	case models.SuitSpades, models.SuitClubs:
		fresh, err := s.repo.FindByID(ctx, gameID)
		if err != nil {
			return err
		}
		aliveEnemies := fresh.AliveEnemies()
		if len(aliveEnemies) == 0 {
			// 同伴在本轮更早的行动里清掉了最后一个敌人：
			// 攻击落空但牌照常消耗
			return s.repo.UpdatePlayerFields(ctx, player.ID, map[string]interface{}{
				"hand":    newHand,
				"discard": newDiscard,
			})
		}

		maxTargets := 1
		if card.Suit == models.SuitClubs {
			maxTargets = 3
		}

		targets := make([]*models.EnemyState, 0, maxTargets)
		for _, id := range uniqueIDs(targetIDs, maxTargets) {
			for _, e := range aliveEnemies {
				if e.ID == id {
					targets = append(targets, e)
					break
				}
			}
		}
		if len(targets) == 0 {
			n := maxTargets
			if n > len(aliveEnemies) {
				n = len(aliveEnemies)
			}
			targets = aliveEnemies[:n]
		}

		damage := card.Value
		if card.Suit == models.SuitSpades {
			damage = card.Value * 2
		}

		for _, target := range targets {
			current, err := s.repo.FindEnemyStateByID(ctx, target.ID)
			if err != nil {
				return err
			}
			newHP := current.HP - damage
			if newHP < 0 {
				newHP = 0
			}
			if err := s.repo.UpdateEnemyFields(ctx, target.ID, map[string]interface{}{
				"hp": newHP,
			}); err != nil {
				return err
			}
		}

	default:
		return apperrors.Newf(apperrors.ErrInvalidParam, "不支持的卡牌花色: %s", card.Suit)
	}

	return s.repo.UpdatePlayerFields(ctx, player.ID, map[string]interface{}{
		"hand":    newHand,
		"discard": newDiscard,
	})
}

// applyEnemyIntent 执行敌人意图并生成下一回合意图。
// 攻击伤害先被护盾按旧到新顺序吸收，护盾耗尽才扣血。
func (s *GameService) applyEnemyIntent(ctx context.Context, gameID, enemyID uint) error {
	// 用最新状态判断存活，本轮更早被击杀的敌人不再出手
	current, err := s.repo.FindEnemyStateByID(ctx, enemyID)
	if err != nil {
		return err
	}
	if current.HP <= 0 {
		return nil
	}

	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}

	result := enemy.ExecuteTurn(current)

	if result.Action == models.IntentDefend {
		healed := current.HP + result.Value
		if healed > current.MaxHP {
			healed = current.MaxHP
		}
		if err := s.repo.UpdateEnemyFields(ctx, enemyID, map[string]interface{}{
			"hp": healed,
		}); err != nil {
			return err
		}
	} else {
		alive := game.AlivePlayers()
		if len(alive) == 0 {
			return nil
		}

		// 意图目标已死则随机换人
		var target *models.PlayerState
		if len(result.Targets) > 0 {
			for _, p := range alive {
				if p.UserID == result.Targets[0] {
					target = p
					break
				}
			}
		}
		if target == nil {
			target = alive[rand.Intn(len(alive))]
		}

		remaining := result.Value
		newBonuses := make(models.BonusList, 0, len(target.Bonuses))
		for _, b := range target.Bonuses {
			if b.Type != models.BonusShield || b.Value <= 0 {
				newBonuses = append(newBonuses, b)
				continue
			}
			absorbed := b.Value
			if absorbed > remaining {
				absorbed = remaining
			}
			remaining -= absorbed
			if leftover := b.Value - absorbed; leftover > 0 {
				newBonuses = append(newBonuses, models.Bonus{Type: b.Type, Value: leftover})
			}
		}

		newHP := target.HP - remaining
		if newHP < 0 {
			newHP = 0
		}
		if err := s.repo.UpdatePlayerFields(ctx, target.ID, map[string]interface{}{
			"hp":       newHP,
			"is_alive": newHP > 0,
			"bonuses":  newBonuses,
		}); err != nil {
			return err
		}
	}

	// 下一回合意图基于行动后的存活名单
	refreshed, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	nextIntent := result.NextIntent
	if nextIntent.Type == models.IntentAttack {
		if alive := refreshed.AlivePlayers(); len(alive) > 0 {
			nextIntent.Targets = []uint{alive[rand.Intn(len(alive))].UserID}
		}
	}
	return s.repo.UpdateEnemyFields(ctx, enemyID, map[string]interface{}{
		"intent": nextIntent,
	})
}

// discardHandsAndRedraw 回合结束：存活玩家弃掉整手牌，
// 重抽满手牌，牌堆不够时重洗弃牌堆。
func (s *GameService) discardHandsAndRedraw(ctx context.Context, gameID uint) error {
	game, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Phase != models.PhaseBattle {
		return nil
	}

	for i := range game.Players {
		p := &game.Players[i]
		if !p.IsAlive {
			continue
		}

		newDiscard := append(models.CardList{}, p.Discard...)
		newDiscard = append(newDiscard, p.Hand...)
		newDeck := append(models.CardList{}, p.Deck...)
		newHand := make(models.CardList, 0, s.config.HandSize)

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

	updated, err := s.repo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	s.notifier.GameUpdate(updated)
	return nil
}

// uniqueIDs 去重并截断到max个，保持先后顺序
func uniqueIDs(ids []uint, max int) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, max)
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == max {
			break
		}
	}
	return out
}
