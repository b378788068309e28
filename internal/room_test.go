package internal_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-arena-battle/internal"
)

// testLogger 測試用日誌器（只輸出錯誤級別，且丟棄輸出）
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fastRoomConfig 縮短延時技能的回復時間，讓測試不用等真實秒數
func fastRoomConfig() internal.RoomConfig {
	return internal.RoomConfig{
		FrameRate:          60,
		SpeedBoostDuration: 120 * time.Millisecond,
		OverhealDuration:   120 * time.Millisecond,
	}
}

// recordConn 記錄房間廣播的假連接
//
// 出站消息經 JSON 解碼後按順序保存，數值一律解碼為 float64。
type recordConn struct {
	mu   sync.Mutex
	msgs []map[string]any
}

func (c *recordConn) SendMessage(data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

// countType 統計指定類型的消息數量
func (c *recordConn) countType(msgType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, msg := range c.msgs {
		if msg["type"] == msgType {
			count++
		}
	}
	return count
}

// lastOfType 獲取指定類型的最後一條消息
func (c *recordConn) lastOfType(msgType string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i]["type"] == msgType {
			return c.msgs[i]
		}
	}
	return nil
}

// total 消息總數
func (c *recordConn) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// newBattleRoom 創建測試房間並註冊清理
func newBattleRoom(t *testing.T) *internal.GameRoom {
	t.Helper()
	room := internal.NewGameRoom("room-test", fastRoomConfig(), testLogger())
	t.Cleanup(room.Close)
	return room
}

// joinTwo 加入兩名玩家（player-1 = mortal，player-2 = ancient）
func joinTwo(t *testing.T, room *internal.GameRoom) (*recordConn, *recordConn) {
	t.Helper()
	c1, c2 := &recordConn{}, &recordConn{}
	room.AddPlayer("player-1", c1)
	room.AddPlayer("player-2", c2)
	require.Equal(t, 2, room.PlayerCount())
	return c1, c2
}

// moveTo 把玩家移動到指定座標
func moveTo(room *internal.GameRoom, playerID string, x, y float64) {
	room.HandlePlayerAction(playerID, internal.Action{Type: internal.ActionMove, X: x, Y: y})
}

// castAbility 釋放技能
func castAbility(room *internal.GameRoom, playerID, ability string) {
	room.HandlePlayerAction(playerID, internal.Action{Type: internal.ActionAbility, Ability: ability})
}

// TestNewGameRoom 測試創建房間
func TestNewGameRoom(t *testing.T) {
	room := newBattleRoom(t)

	assert.Equal(t, "room-test", room.ID())
	assert.True(t, room.GameRunning())
	assert.Equal(t, 0, room.PlayerCount())

	state := room.Snapshot()
	assert.Len(t, state.Towers, 6)

	bases := 0
	for _, tower := range state.Towers {
		if tower.IsBase {
			bases++
			assert.Equal(t, 500, tower.Health)
		} else {
			assert.Equal(t, 300, tower.Health)
		}
	}
	assert.Equal(t, 2, bases)
}

// TestGameRoom_AddPlayer 測試加入玩家與陣營分配
func TestGameRoom_AddPlayer(t *testing.T) {
	room := newBattleRoom(t)
	c1, c2 := joinTwo(t, room)

	state := room.Snapshot()
	require.Len(t, state.Players, 2)

	// 首位加入者為 mortal，出生在左側
	p1 := state.Players[0]
	assert.Equal(t, internal.TeamMortal, p1.Team)
	assert.Equal(t, 200.0, p1.Hero.X)
	assert.Equal(t, 300.0, p1.Hero.Y)

	// 第二位為 ancient，出生在右側
	p2 := state.Players[1]
	assert.Equal(t, internal.TeamAncient, p2.Team)
	assert.Equal(t, 800.0, p2.Hero.X)

	// 先加入者看到兩次 playerJoined（含自己），後加入者只看到一次
	assert.Equal(t, 2, c1.countType("playerJoined"))
	assert.Equal(t, 1, c2.countType("playerJoined"))
}

// TestGameRoom_RemovePlayer 測試移除玩家
func TestGameRoom_RemovePlayer(t *testing.T) {
	room := newBattleRoom(t)
	c1, _ := joinTwo(t, room)

	room.RemovePlayer("player-2")

	assert.Equal(t, 1, room.PlayerCount())

	left := c1.lastOfType("playerLeft")
	require.NotNil(t, left)
	assert.Equal(t, "player-2", left["playerId"])
}

// TestGameRoom_MoveAction 測試移動動作與廣播
func TestGameRoom_MoveAction(t *testing.T) {
	room := newBattleRoom(t)
	c1, c2 := joinTwo(t, room)

	moveTo(room, "player-1", 240, 260)

	hero := room.Snapshot().Players[0].Hero
	assert.Equal(t, 240.0, hero.X)
	assert.Equal(t, 260.0, hero.Y)

	// 移動事件推送給房間內所有成員
	for _, conn := range []*recordConn{c1, c2} {
		moved := conn.lastOfType("playerMoved")
		require.NotNil(t, moved)
		assert.Equal(t, "player-1", moved["playerId"])
		assert.Equal(t, 240.0, moved["x"])
		assert.Equal(t, 260.0, moved["y"])
	}
}

// TestGameRoom_IgnoresInvalidActions 測試未知動作與未知玩家
func TestGameRoom_IgnoresInvalidActions(t *testing.T) {
	room := newBattleRoom(t)
	c1, _ := joinTwo(t, room)
	before := c1.total()

	// 未知動作類型
	room.HandlePlayerAction("player-1", internal.Action{Type: "dance"})
	// 不在房間內的玩家
	room.HandlePlayerAction("ghost", internal.Action{Type: internal.ActionMove, X: 1, Y: 1})

	assert.Equal(t, before, c1.total())
}

// TestGameRoom_AbilityQ 測試 q 技能的距離分段傷害
func TestGameRoom_AbilityQ(t *testing.T) {
	tests := []struct {
		name       string
		caster     string
		targetX    float64 // 目標（對手）的 x 座標，y 固定 300
		wantHealth int     // 結算後對手生命值
		wantDamage bool
	}{
		// mortal 施放，ancient 承受（被動減免 30%）
		{"近距離對 ancient", "player-1", 240, 86, true},  // 距離 40 → 20 點，減免後 14
		{"遠距離對 ancient", "player-1", 270, 93, true},  // 距離 70 → 10 點，減免後 7
		{"超出範圍", "player-1", 360, 100, false},        // 距離 160 → 無傷害
		// ancient 施放，mortal 全額承受
		{"近距離對 mortal", "player-2", 240, 80, true}, // 20 點全額
		{"遠距離對 mortal", "player-2", 270, 90, true}, // 10 點全額
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := newBattleRoom(t)
			c1, _ := joinTwo(t, room)

			// 施法者固定在 (200, 300)，把對手移動到目標位置
			target := "player-2"
			targetIdx := 1
			if tt.caster == "player-2" {
				target = "player-1"
				targetIdx = 0
			}
			moveTo(room, tt.caster, 200, 300)
			moveTo(room, target, tt.targetX, 300)

			castAbility(room, tt.caster, "q")

			hero := room.Snapshot().Players[targetIdx].Hero
			assert.Equal(t, tt.wantHealth, hero.Health)

			// 無論是否命中，abilityUsed 都會廣播（技能已進入冷卻）
			used := c1.lastOfType("abilityUsed")
			require.NotNil(t, used)
			assert.Equal(t, tt.caster, used["playerId"])
			assert.Equal(t, "q", used["ability"])

			if tt.wantDamage {
				dmg := c1.lastOfType("damage")
				require.NotNil(t, dmg)
				assert.Equal(t, float64(tt.wantHealth), dmg["newHealth"])
			} else {
				assert.Nil(t, c1.lastOfType("damage"))
			}
		})
	}
}

// TestGameRoom_AbilityCooldown 測試技能冷卻門檻與按幀恢復
func TestGameRoom_AbilityCooldown(t *testing.T) {
	room := newBattleRoom(t)
	c1, _ := joinTwo(t, room)

	castAbility(room, "player-1", "q")
	// 冷卻中：第二次釋放被忽略
	castAbility(room, "player-1", "q")
	assert.Equal(t, 1, c1.countType("abilityUsed"))

	// 推進足夠的幀讓冷卻歸零（q 的上限為 120 幀）
	for i := 0; i < 130; i++ {
		room.TickFrame()
	}

	castAbility(room, "player-1", "q")
	assert.Equal(t, 2, c1.countType("abilityUsed"))
}

// TestGameRoom_AbilityW 測試移速加成與定時回復
func TestGameRoom_AbilityW(t *testing.T) {
	room := newBattleRoom(t)
	joinTwo(t, room)

	castAbility(room, "player-1", "w")
	assert.Equal(t, 6, room.Snapshot().Players[0].Hero.Speed)

	// 持續時間結束後回復基礎移速
	assert.Eventually(t, func() bool {
		return room.Snapshot().Players[0].Hero.Speed == 4
	}, time.Second, 10*time.Millisecond)
}

// TestGameRoom_AbilityW_PlayerLeft 測試玩家離開後的定時回復
//
// 回復計時器按 ID 重查玩家：已離開的玩家被安靜跳過，
// 不會 panic，也不影響剩餘玩家。
func TestGameRoom_AbilityW_PlayerLeft(t *testing.T) {
	room := newBattleRoom(t)
	joinTwo(t, room)

	castAbility(room, "player-1", "w")
	room.RemovePlayer("player-1")

	time.Sleep(3 * fastRoomConfig().SpeedBoostDuration)

	assert.Equal(t, 1, room.PlayerCount())
	assert.Equal(t, 4, room.Snapshot().Players[0].Hero.Speed)
}

// TestGameRoom_AbilityE 測試拉拽技能
func TestGameRoom_AbilityE(t *testing.T) {
	room := newBattleRoom(t)
	joinTwo(t, room)

	// 施法者 (200, 300)，對手 (300, 300)：沿連線拉近 50 單位
	moveTo(room, "player-2", 300, 300)
	castAbility(room, "player-1", "e")

	hero := room.Snapshot().Players[1].Hero
	assert.InDelta(t, 250.0, hero.X, 0.0001)
	assert.InDelta(t, 300.0, hero.Y, 0.0001)

	// 拉拽附帶 10 點傷害，ancient 減免後 7
	assert.Equal(t, 93, hero.Health)
}

// TestGameRoom_AbilityR 測試過量治療與定時移除
func TestGameRoom_AbilityR(t *testing.T) {
	room := newBattleRoom(t)
	joinTwo(t, room)

	room.ApplyDamage(room.HeroByID("player-1"), 50)
	require.Equal(t, 50, room.Snapshot().Players[0].Hero.Health)

	// 治療量 = 失去的生命值（50），補滿
	castAbility(room, "player-1", "r")
	assert.Equal(t, 100, room.Snapshot().Players[0].Hero.Health)

	// 持續時間結束後移除等量治療
	assert.Eventually(t, func() bool {
		return room.Snapshot().Players[0].Hero.Health == 50
	}, time.Second, 10*time.Millisecond)
}

// TestGameRoom_AbilityR_ClampToOne 測試治療移除的保底
//
// 移除治療時若會歸零，夾制到 1：過量治療的消退本身
// 永遠不會殺死英雄。
func TestGameRoom_AbilityR_ClampToOne(t *testing.T) {
	room := newBattleRoom(t)
	joinTwo(t, room)

	hero := room.HeroByID("player-1")
	room.ApplyDamage(hero, 90)
	require.Equal(t, 10, room.Snapshot().Players[0].Hero.Health)

	// 治療 90 點補滿，隨後在持續時間內再受 50 點傷害
	castAbility(room, "player-1", "r")
	room.ApplyDamage(hero, 50)
	require.Equal(t, 50, room.Snapshot().Players[0].Hero.Health)

	// 移除 90 點會變成 -40 → 夾制到 1
	assert.Eventually(t, func() bool {
		return room.Snapshot().Players[0].Hero.Health == 1
	}, time.Second, 10*time.Millisecond)
}

// TestGameRoom_Attack 測試普通攻擊與冷卻
func TestGameRoom_Attack(t *testing.T) {
	room := newBattleRoom(t)
	joinTwo(t, room)

	// 距離 20，在攻擊範圍（30）內
	moveTo(room, "player-2", 220, 300)

	room.HandlePlayerAction("player-1", internal.Action{Type: internal.ActionAttack})

	// 15 點傷害，ancient 減免後 10
	assert.Equal(t, 90, room.Snapshot().Players[1].Hero.Health)
	assert.Greater(t, room.Snapshot().Players[0].Hero.AttackCooldown, 0)

	// 冷卻中：連續攻擊被忽略
	room.HandlePlayerAction("player-1", internal.Action{Type: internal.ActionAttack})
	assert.Equal(t, 90, room.Snapshot().Players[1].Hero.Health)
}

// TestGameRoom_AttackOutOfRange 測試攻擊距離的嚴格判定
func TestGameRoom_AttackOutOfRange(t *testing.T) {
	room := newBattleRoom(t)
	joinTwo(t, room)

	// 距離恰好等於攻擊範圍：嚴格小於才命中
	moveTo(room, "player-2", 230, 300)

	room.HandlePlayerAction("player-1", internal.Action{Type: internal.ActionAttack})

	assert.Equal(t, 100, room.Snapshot().Players[1].Hero.Health)
	assert.Equal(t, 0, room.Snapshot().Players[0].Hero.AttackCooldown)
}

// TestGameRoom_WinByBaseDestroyed 測試主堡被摧毀的勝負判定
func TestGameRoom_WinByBaseDestroyed(t *testing.T) {
	room := newBattleRoom(t)
	c1, c2 := joinTwo(t, room)

	base := room.TowerByID("mortal_base")
	require.NotNil(t, base)
	room.ApplyDamage(base, 500)

	assert.Equal(t, 0, base.Health)
	assert.False(t, room.GameRunning())

	// 兩名玩家各收到一次 gameOver
	for _, conn := range []*recordConn{c1, c2} {
		assert.Equal(t, 1, conn.countType("gameOver"))
		over := conn.lastOfType("gameOver")
		require.NotNil(t, over)
		assert.Equal(t, "Ancient", over["winner"])
	}
}

// TestGameRoom_HeroDeathOverridesBase 測試英雄死亡覆寫主堡結果
//
// 同一次結算裡主堡與英雄同時歸零時，英雄死亡的判定後寫、
// 後寫者勝。
func TestGameRoom_HeroDeathOverridesBase(t *testing.T) {
	room := newBattleRoom(t)
	c1, _ := joinTwo(t, room)

	// mortal 主堡先歸零（指向 Ancient 勝），但同幀 ancient 英雄陣亡
	room.TowerByID("mortal_base").Health = 0
	room.ApplyDamage(room.HeroByID("player-2"), 200)

	over := c1.lastOfType("gameOver")
	require.NotNil(t, over)
	assert.Equal(t, "Mortal", over["winner"])
}

// TestGameRoom_DamageClampsToZero 測試生命值夾制
func TestGameRoom_DamageClampsToZero(t *testing.T) {
	room := newBattleRoom(t)
	c1, _ := joinTwo(t, room)

	room.ApplyDamage(room.HeroByID("player-1"), 500)

	assert.Equal(t, 0, room.Snapshot().Players[0].Hero.Health)

	dmg := c1.lastOfType("damage")
	require.NotNil(t, dmg)
	assert.Equal(t, 0.0, dmg["newHealth"])
}

// TestGameRoom_AbilityWithoutOpponent 測試沒有對手時的技能釋放
func TestGameRoom_AbilityWithoutOpponent(t *testing.T) {
	room := newBattleRoom(t)
	c1 := &recordConn{}
	room.AddPlayer("player-1", c1)

	castAbility(room, "player-1", "q")

	// 技能照常進入冷卻並廣播，但沒有傷害結算
	assert.Equal(t, 1, c1.countType("abilityUsed"))
	assert.Nil(t, c1.lastOfType("damage"))
	assert.Greater(t, room.Snapshot().Players[0].Hero.Skills[internal.AbilityQ].Cooldown, 0)
}

// TestGameRoom_ActionsIgnoredAfterGameOver 測試終態後動作被忽略
func TestGameRoom_ActionsIgnoredAfterGameOver(t *testing.T) {
	room := newBattleRoom(t)
	c1, _ := joinTwo(t, room)

	room.ApplyDamage(room.TowerByID("ancient_base"), 500)
	require.False(t, room.GameRunning())
	before := c1.total()

	moveTo(room, "player-1", 400, 400)
	castAbility(room, "player-1", "q")
	room.HandlePlayerAction("player-1", internal.Action{Type: internal.ActionAttack})

	assert.Equal(t, before, c1.total())
	// 座標也不會變
	assert.Equal(t, 200.0, room.Snapshot().Players[0].Hero.X)
}

// TestGameRoom_CloseIdempotent 測試重複關閉
func TestGameRoom_CloseIdempotent(t *testing.T) {
	room := internal.NewGameRoom("room-close", fastRoomConfig(), testLogger())

	room.Close()
	room.Close()

	assert.False(t, room.GameRunning())
}
