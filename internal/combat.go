package internal

import "math"

// Team 陣營
//
// 兩個陣營對稱佈局（mortal 在左、ancient 在右），唯一的不對稱是
// ancient 的被動減傷（見 MitigateDamage）。
type Team string

const (
	TeamMortal  Team = "mortal"
	TeamAncient Team = "ancient"
)

// ancientMitigation 遠古陣營被動減傷比例（承受傷害 × 0.7）
const ancientMitigation = 0.7

// DisplayName 勝利廣播使用的陣營顯示名稱
func (t Team) DisplayName() string {
	if t == TeamAncient {
		return "Ancient"
	}
	return "Mortal"
}

// Opposing 返回敵對陣營
func (t Team) Opposing() Team {
	if t == TeamMortal {
		return TeamAncient
	}
	return TeamMortal
}

// Combatant 可承受傷害的作戰單位（英雄或防禦塔）
//
// 傷害結算只需要三件事：目標陣營（決定被動減傷）、當前生命值、
// 以及修改生命值的權限。setHealth 不導出——生命值只能由房間在
// 持有鎖的情況下修改（所有權見 GameRoom）。
type Combatant interface {
	CombatTeam() Team
	CurrentHealth() int
	setHealth(health int)
}

// Distance 計算兩點之間的直線距離
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(dx*dx + dy*dy)
}

// MitigateDamage 計算實際傷害（套用陣營被動）
//
// ancient 陣營承受 floor(raw × 0.7)，mortal 承受原始傷害。
func MitigateDamage(team Team, raw int) int {
	if team == TeamAncient {
		return int(math.Floor(float64(raw) * ancientMitigation))
	}
	return raw
}
