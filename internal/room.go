package internal

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// 系統設計問題：
//   如何讓兩個遠端客戶端在同一場對戰中觀察到一致的世界狀態？
//
// 核心挑戰：
//   1. 權威狀態：位置、傷害、技能結算只能由服務器裁定
//   2. 並發控制：兩條連接的動作與延時技能回復同時到達
//   3. 即時廣播：每次狀態變更立即推送給房間內所有成員
//   4. 延時效果：w/r 技能在固定時間後必須回復，且玩家可能已離開
//
// 設計方案：
//   ✅ 房間為唯一權威 - 英雄/防禦塔狀態只在持鎖時修改
//   ✅ RWMutex - 動作處理互斥，快照讀取並發
//   ✅ 廣播即結算 - 狀態變更與事件推送在同一臨界區完成
//   ✅ 定時回復按 ID 重查 - 過期計時器無法復活已移除的玩家

// PlayerConn 房間向玩家發送出站消息的最小接口
//
// 連接由會話層持有，房間僅借用發送能力；關閉連接永遠不是
// 房間的職責。發送為盡力而為：失敗由調用方吞掉。
type PlayerConn interface {
	SendMessage(data []byte) error
}

// Player 會話玩家：身份、借用的連接、陣營與英雄
type Player struct {
	ID   string `json:"id"`
	Team Team   `json:"team"`
	Hero *Hero  `json:"hero"`

	conn PlayerConn
}

// GameRoom 對戰房間（核心狀態機）
//
// 狀態：active（gameRunning=true）→ ended（gameRunning=false，終態）。
// 終態後的動作消息被靜默接收並忽略。
//
// 房間獨占擁有其防禦塔與玩家；玩家獨占擁有其英雄。
// 所有變更在房間鎖內完成，延時技能回復（w/r）通過
// time.AfterFunc 重新進入同一把鎖，並按玩家 ID 重查存在性。
type GameRoom struct {
	id        string
	players   map[string]*Player
	joinOrder []string // 加入順序（陣營分配與勝負遍歷都依賴它）
	towers    []*Tower

	gameRunning bool
	createdAt   time.Time

	cfg    RoomConfig
	logger *slog.Logger

	mu     sync.RWMutex
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewGameRoom 創建對戰房間
//
// 固定六塔佈局，遊戲立即進入 active 狀態。同時啟動幀循環：
// 技能與普攻冷卻以幀為單位，按 cfg.FrameRate 每幀遞減。
func NewGameRoom(id string, cfg RoomConfig, logger *slog.Logger) *GameRoom {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultRoomConfig().FrameRate
	}

	r := &GameRoom{
		id:          id,
		players:     make(map[string]*Player),
		towers:      defaultTowers(),
		gameRunning: true,
		createdAt:   time.Now(),
		cfg:         cfg,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}

	r.wg.Add(1)
	go r.frameLoop()

	return r
}

// ID 房間識別碼
func (r *GameRoom) ID() string { return r.id }

// CreatedAt 房間創建時間
func (r *GameRoom) CreatedAt() time.Time { return r.createdAt }

// PlayerCount 當前玩家數
func (r *GameRoom) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// GameRunning 遊戲是否進行中
func (r *GameRoom) GameRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameRunning
}

// AddPlayer 加入玩家
//
// 陣營按當前人數的奇偶分配：偶數 → mortal，奇數 → ancient，
// 因此首位加入者為 mortal。房間本身不做容量檢查——准入規則
// 由 Manager.Assign 在註冊表鎖內保證。
//
// 註冊後向所有成員（含新玩家）廣播 playerJoined。
func (r *GameRoom) AddPlayer(playerID string, conn PlayerConn) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	team := TeamMortal
	if len(r.players)%2 == 1 {
		team = TeamAncient
	}

	player := &Player{
		ID:   playerID,
		Team: team,
		Hero: NewHero(team),
		conn: conn,
	}

	r.players[playerID] = player
	r.joinOrder = append(r.joinOrder, playerID)

	r.broadcast(playerJoinedMessage{
		Type:   msgPlayerJoined,
		Player: player,
	})

	return player
}

// RemovePlayer 移除玩家並廣播 playerLeft
func (r *GameRoom) RemovePlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.players, playerID)
	for i, id := range r.joinOrder {
		if id == playerID {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}

	r.broadcast(playerLeftMessage{
		Type:     msgPlayerLeft,
		PlayerID: playerID,
	})
}

// HandlePlayerAction 處理玩家動作
//
// 分發規則：
//   - move：無條件採用客戶端座標（服務器信任客戶端上報，
//     不做邊界/速度驗證），廣播 playerMoved
//   - ability：技能結算
//   - attack：普通攻擊結算
//   - 其他類型：靜默忽略
//
// 未知玩家整個調用為空操作；遊戲結束後的動作同樣被忽略。
func (r *GameRoom) HandlePlayerAction(playerID string, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.gameRunning {
		return
	}

	player, exists := r.players[playerID]
	if !exists {
		return
	}

	switch action.Type {
	case ActionMove:
		player.Hero.X = action.X
		player.Hero.Y = action.Y
		r.broadcast(playerMovedMessage{
			Type:     msgPlayerMoved,
			PlayerID: playerID,
			X:        action.X,
			Y:        action.Y,
		})

	case ActionAbility:
		r.handleAbility(player, AbilityKey(action.Ability))

	case ActionAttack:
		r.handleAttack(player)
	}
}

// handleAbility 技能結算（須持有寫鎖）
//
// 冷卻為 0 才可使用；使用即把冷卻設為上限並在效果結算之前
// 廣播 abilityUsed。沒有對手時技能照常進入冷卻但無效果。
func (r *GameRoom) handleAbility(player *Player, ability AbilityKey) {
	skill, exists := player.Hero.Skills[ability]
	if !exists || !skill.Ready() {
		return
	}

	skill.Cooldown = skill.MaxCooldown

	r.broadcast(abilityUsedMessage{
		Type:     msgAbilityUsed,
		PlayerID: player.ID,
		Ability:  ability,
		Position: position{X: player.Hero.X, Y: player.Hero.Y},
	})

	r.applyAbilityEffect(player, ability)
}

// 技能效果參數
const (
	abilityQRange       = 100.0
	abilityQInnerRange  = 50.0
	abilityQInnerDamage = 20
	abilityQOuterDamage = 10

	abilityERange  = 150.0
	abilityEPull   = 50.0
	abilityEDamage = 10

	abilityRMaxBonus = 100
)

// applyAbilityEffect 套用技能效果（須持有寫鎖）
func (r *GameRoom) applyAbilityEffect(player *Player, ability AbilityKey) {
	opponent := r.opponentOf(player.ID)

	switch ability {
	case AbilityQ: // 範圍傷害
		if opponent == nil {
			return
		}
		dist := Distance(player.Hero.X, player.Hero.Y, opponent.Hero.X, opponent.Hero.Y)
		if dist <= abilityQRange {
			damage := abilityQOuterDamage
			if dist <= abilityQInnerRange {
				damage = abilityQInnerDamage
			}
			r.applyDamage(opponent.Hero, damage)
		}

	case AbilityW: // 移速加成
		player.Hero.Speed = heroBoostedSpeed
		playerID := player.ID
		time.AfterFunc(r.cfg.SpeedBoostDuration, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			// 按 ID 重查：玩家可能已離開
			if p, ok := r.players[playerID]; ok {
				p.Hero.Speed = heroBaseSpeed
			}
		})

	case AbilityE: // 拉拽 + 傷害
		if opponent == nil {
			return
		}
		dist := Distance(player.Hero.X, player.Hero.Y, opponent.Hero.X, opponent.Hero.Y)
		if dist <= abilityERange {
			// 沿連線向施法者位移固定距離
			angle := math.Atan2(player.Hero.Y-opponent.Hero.Y, player.Hero.X-opponent.Hero.X)
			opponent.Hero.X += math.Cos(angle) * abilityEPull
			opponent.Hero.Y += math.Sin(angle) * abilityEPull
			r.applyDamage(opponent.Hero, abilityEDamage)
		}

	case AbilityR: // 臨時過量治療
		bonus := player.Hero.MaxHealth - player.Hero.Health
		if bonus > abilityRMaxBonus {
			bonus = abilityRMaxBonus
		}
		player.Hero.Health += bonus
		playerID := player.ID
		time.AfterFunc(r.cfg.OverhealDuration, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			p, ok := r.players[playerID]
			if !ok {
				return
			}
			// 移除等量治療，但至少保留 1 點生命
			health := p.Hero.Health - bonus
			if health < 1 {
				health = 1
			}
			p.Hero.Health = health
		})
	}
}

// handleAttack 普通攻擊結算（須持有寫鎖）
//
// 冷卻歸零且與對手距離嚴格小於攻擊範圍才會命中；
// 命中後冷卻設為 90 幀。
func (r *GameRoom) handleAttack(player *Player) {
	opponent := r.opponentOf(player.ID)
	if opponent == nil || player.Hero.AttackCooldown > 0 {
		return
	}

	dist := Distance(player.Hero.X, player.Hero.Y, opponent.Hero.X, opponent.Hero.Y)
	if dist < player.Hero.AttackRange {
		r.applyDamage(opponent.Hero, player.Hero.AttackDamage)
		player.Hero.AttackCooldown = attackCooldownFrames
	}
}

// opponentOf 找出唯一的對手（須持有鎖）
//
// 明確的雙人假設：房間最多兩名玩家，對手即除自己以外的
// 唯一成員；不存在時返回 nil。
func (r *GameRoom) opponentOf(playerID string) *Player {
	for _, id := range r.joinOrder {
		if id != playerID {
			return r.players[id]
		}
	}
	return nil
}

// ApplyDamage 對目標造成傷害
//
// 套用陣營被動後從目標生命值扣除，夾制到 0（永不為負）；
// 生命值在本次調用歸零時觸發勝負判定。無論生命值是否變化
// 都廣播一次 damage 事件，事件攜帶完整的目標物件。
func (r *GameRoom) ApplyDamage(target Combatant, rawDamage int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyDamage(target, rawDamage)
}

// applyDamage 傷害結算（須持有寫鎖）
func (r *GameRoom) applyDamage(target Combatant, rawDamage int) {
	damage := MitigateDamage(target.CombatTeam(), rawDamage)

	health := target.CurrentHealth() - damage
	if health <= 0 {
		health = 0
	}
	target.setHealth(health)

	if health == 0 {
		r.checkWinCondition()
	}

	r.broadcast(damageMessage{
		Type:      msgDamage,
		Target:    target,
		Damage:    damage,
		NewHealth: health,
	})
}

// checkWinCondition 勝負判定（須持有寫鎖）
//
// 先檢查兩座主堡（mortal 優先），再按加入順序遍歷英雄：
// 英雄死亡的結果會覆寫主堡結果（後寫者勝）。找到贏家即
// 轉入終態並廣播唯一一次 gameOver。
func (r *GameRoom) checkWinCondition() {
	if !r.gameRunning {
		return
	}

	var winner string

	var mortalBase, ancientBase *Tower
	for _, t := range r.towers {
		if !t.IsBase {
			continue
		}
		if t.Team == TeamMortal {
			mortalBase = t
		} else {
			ancientBase = t
		}
	}

	if mortalBase.Health <= 0 {
		winner = TeamAncient.DisplayName()
	} else if ancientBase.Health <= 0 {
		winner = TeamMortal.DisplayName()
	}

	for _, id := range r.joinOrder {
		if p := r.players[id]; p.Hero.Health <= 0 {
			winner = p.Team.Opposing().DisplayName()
		}
	}

	if winner != "" {
		r.endGame(winner)
	}
}

// endGame 轉入終態並廣播 gameOver（須持有寫鎖）
func (r *GameRoom) endGame(winner string) {
	r.gameRunning = false

	r.broadcast(gameOverMessage{
		Type:   msgGameOver,
		Winner: winner,
	})

	r.logger.Info("對戰結束",
		"room_id", r.id,
		"winner", winner)
}

// broadcast 向房間內所有成員發送消息（須持有鎖）
//
// 發送為盡力而為：連接已關閉或緩衝已滿時只記錄日誌，
// 不重試、不中斷結算。
func (r *GameRoom) broadcast(message any) {
	data, err := encodeMessage(message)
	if err != nil {
		r.logger.Error("序列化出站消息失敗", "error", err, "room_id", r.id)
		return
	}

	for _, player := range r.players {
		if player.conn == nil {
			continue
		}
		if err := player.conn.SendMessage(data); err != nil {
			r.logger.Debug("發送消息失敗",
				"room_id", r.id,
				"player_id", player.ID,
				"error", err)
		}
	}
}

// Snapshot 獲取房間狀態快照（welcome 與測試使用）
//
// 返回深拷貝：快照可以在鎖外安全序列化或讀取，不會與
// 房間結算或幀循環競爭。
func (r *GameRoom) Snapshot() *GameState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make([]*Player, 0, len(r.players))
	for _, id := range r.joinOrder {
		p := r.players[id]
		players = append(players, &Player{
			ID:   p.ID,
			Team: p.Team,
			Hero: copyHero(p.Hero),
		})
	}

	towers := make([]*Tower, 0, len(r.towers))
	for _, t := range r.towers {
		copied := *t
		towers = append(towers, &copied)
	}

	return &GameState{
		Players:     players,
		Towers:      towers,
		GameRunning: r.gameRunning,
	}
}

func copyHero(h *Hero) *Hero {
	copied := *h
	copied.Skills = make(map[AbilityKey]*Skill, len(h.Skills))
	for key, skill := range h.Skills {
		s := *skill
		copied.Skills[key] = &s
	}
	return &copied
}

// TowerByID 獲取房間擁有的防禦塔（ApplyDamage 的目標）
//
// 返回的是房間獨占擁有的物件；生命值只能通過 ApplyDamage
// 修改。
func (r *GameRoom) TowerByID(towerID string) *Tower {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.towers {
		if t.ID == towerID {
			return t
		}
	}
	return nil
}

// HeroByID 獲取指定玩家的英雄（ApplyDamage 的目標）
//
// 所有權同 TowerByID：讀取快照請用 Snapshot。
func (r *GameRoom) HeroByID(playerID string) *Hero {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.players[playerID]; ok {
		return p.Hero
	}
	return nil
}

// TickFrame 將所有英雄的冷卻遞減一幀（公開供測試按幀推進）
func (r *GameRoom) TickFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.gameRunning {
		return
	}

	for _, player := range r.players {
		player.Hero.stepCooldowns()
	}
}

// frameLoop 冷卻幀循環
func (r *GameRoom) frameLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(r.cfg.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.TickFrame()
		case <-r.stopCh:
			return
		}
	}
}

// Close 關閉房間並停止幀循環
func (r *GameRoom) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.gameRunning = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
}
