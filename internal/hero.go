package internal

// 英雄基準數值
//
// 冷卻以幀為單位，由房間的幀循環以每秒 60 幀遞減
// （q=120 幀即 2 秒）。
const (
	heroMaxHealth    = 100
	heroBaseSpeed    = 4
	heroBoostedSpeed = 6
	heroAttackRange  = 30
	heroAttackDamage = 15

	// 普通攻擊命中後的冷卻幀數
	attackCooldownFrames = 90
)

// AbilityKey 技能槽位鍵（q/w/e/r）
type AbilityKey string

const (
	AbilityQ AbilityKey = "q" // 範圍傷害
	AbilityW AbilityKey = "w" // 移速加成
	AbilityE AbilityKey = "e" // 拉拽 + 傷害
	AbilityR AbilityKey = "r" // 臨時過量治療
)

// Skill 技能槽：當前冷卻與固定上限
//
// 不變式：0 ≤ Cooldown ≤ MaxCooldown；冷卻為 0 時才可使用。
type Skill struct {
	Cooldown    int `json:"cooldown"`
	MaxCooldown int `json:"maxCooldown"`
}

// Ready 技能是否可用
func (s *Skill) Ready() bool {
	return s.Cooldown == 0
}

// Hero 玩家的作戰單位
//
// JSON 標籤即線上格式：快照與傷害事件會把整個英雄物件
// 序列化給客戶端。
type Hero struct {
	Type           Team                  `json:"type"`
	X              float64               `json:"x"`
	Y              float64               `json:"y"`
	Health         int                   `json:"health"`
	MaxHealth      int                   `json:"maxHealth"`
	Speed          int                   `json:"speed"`
	AttackRange    float64               `json:"attackRange"`
	AttackDamage   int                   `json:"attackDamage"`
	AttackCooldown int                   `json:"attackCooldown"`
	Skills         map[AbilityKey]*Skill `json:"skills"`
}

// NewHero 以基準數值創建英雄
//
// 出生點：mortal x=200，ancient x=800，y 固定 300。
// 四個技能槽冷卻全部歸零（立即可用）。
func NewHero(team Team) *Hero {
	spawnX := 200.0
	if team == TeamAncient {
		spawnX = 800.0
	}

	return &Hero{
		Type:         team,
		X:            spawnX,
		Y:            300,
		Health:       heroMaxHealth,
		MaxHealth:    heroMaxHealth,
		Speed:        heroBaseSpeed,
		AttackRange:  heroAttackRange,
		AttackDamage: heroAttackDamage,
		Skills: map[AbilityKey]*Skill{
			AbilityQ: {Cooldown: 0, MaxCooldown: 120},
			AbilityW: {Cooldown: 0, MaxCooldown: 180},
			AbilityE: {Cooldown: 0, MaxCooldown: 150},
			AbilityR: {Cooldown: 0, MaxCooldown: 300},
		},
	}
}

// CombatTeam 實現 Combatant
func (h *Hero) CombatTeam() Team { return h.Type }

// CurrentHealth 實現 Combatant
func (h *Hero) CurrentHealth() int { return h.Health }

func (h *Hero) setHealth(health int) { h.Health = health }

// stepCooldowns 將所有冷卻遞減一幀（不低於 0）
func (h *Hero) stepCooldowns() {
	if h.AttackCooldown > 0 {
		h.AttackCooldown--
	}
	for _, skill := range h.Skills {
		if skill.Cooldown > 0 {
			skill.Cooldown--
		}
	}
}
