package game

import (
	"sync"
	"time"

	"github.com/wfunc/card-dungeon/internal/models"
)

// planningRound 一局游戏当前计划回合的内存状态。
// 所有字段都由registry的per-game锁保护。
type planningRound struct {
	gameID    uint
	round     int
	endsAt    time.Time
	actions   map[uint]Action // userID -> 已提交行动
	confirmed map[uint]bool   // userID -> 已确认
	resolved  bool
	timer     *time.Timer
}

// rewardRound 奖励阶段的内存状态
type rewardRound struct {
	gameID    uint
	floor     int
	endsAt    time.Time
	options   []models.Card
	picks     map[uint]string // userID -> cardID，先到先得
	confirmed map[uint]bool
	resolved  bool
	timer     *time.Timer
}

// roundRegistry 进程内回合状态注册表。
// 每局游戏一把互斥锁，所有状态变更（包括数据库写入）都在锁内串行执行，
// 定时器回调和玩家请求之间不会交叉。
type roundRegistry struct {
	mu       sync.RWMutex
	locks    map[uint]*sync.Mutex
	planning map[uint]*planningRound
	rewards  map[uint]*rewardRound
}

func newRoundRegistry() *roundRegistry {
	return &roundRegistry{
		locks:    make(map[uint]*sync.Mutex),
		planning: make(map[uint]*planningRound),
		rewards:  make(map[uint]*rewardRound),
	}
}

// gameMu 获取（必要时创建）某局游戏的互斥锁
func (r *roundRegistry) gameMu(gameID uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	mu, ok := r.locks[gameID]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[gameID] = mu
	}
	return mu
}

// setPlanning 替换当前计划回合，停掉旧回合的定时器
func (r *roundRegistry) setPlanning(gameID uint, round *planningRound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.planning[gameID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	r.planning[gameID] = round
}

func (r *roundRegistry) getPlanning(gameID uint) *planningRound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.planning[gameID]
}

// clearPlanning 仅当round仍是当前回合时移除，防止误删后继回合
func (r *roundRegistry) clearPlanning(gameID uint, round *planningRound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.planning[gameID]; ok && cur == round {
		if cur.timer != nil {
			cur.timer.Stop()
		}
		delete(r.planning, gameID)
	}
}

func (r *roundRegistry) setReward(gameID uint, round *rewardRound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.rewards[gameID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	r.rewards[gameID] = round
}

func (r *roundRegistry) getReward(gameID uint) *rewardRound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rewards[gameID]
}

func (r *roundRegistry) clearReward(gameID uint, round *rewardRound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rewards[gameID]; ok && cur == round {
		if cur.timer != nil {
			cur.timer.Stop()
		}
		delete(r.rewards, gameID)
	}
}

// clear 游戏结束时清掉该局的全部回合状态和锁
func (r *roundRegistry) clear(gameID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.planning[gameID]; ok {
		if cur.timer != nil {
			cur.timer.Stop()
		}
		delete(r.planning, gameID)
	}
	if cur, ok := r.rewards[gameID]; ok {
		if cur.timer != nil {
			cur.timer.Stop()
		}
		delete(r.rewards, gameID)
	}
	delete(r.locks, gameID)
}
