package internal

// Tower 防禦塔：創建後除生命值外不可變
//
// 塔永遠不會被移除，生命值只會被削減到 0；標記 isBase 的
// 主堡決定勝負（見 GameRoom 的勝負判定）。
type Tower struct {
	ID        string  `json:"id"`
	Team      Team    `json:"team"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Health    int     `json:"health"`
	MaxHealth int     `json:"maxHealth"`
	Range     float64 `json:"range"`
	Damage    int     `json:"damage"`
	IsBase    bool    `json:"isBase,omitempty"`
}

// CombatTeam 實現 Combatant
func (t *Tower) CombatTeam() Team { return t.Team }

// CurrentHealth 實現 Combatant
func (t *Tower) CurrentHealth() int { return t.Health }

func (t *Tower) setHealth(health int) { t.Health = health }

// defaultTowers 固定的六塔佈局
//
// 每個陣營兩座外塔（300 血）加一座主堡（500 血、isBase）。
func defaultTowers() []*Tower {
	return []*Tower{
		// Mortal 陣營（左側）
		{ID: "mortal_t1", Team: TeamMortal, X: 100, Y: 300, Health: 300, MaxHealth: 300, Range: 150, Damage: 10},
		{ID: "mortal_t2", Team: TeamMortal, X: 300, Y: 300, Health: 300, MaxHealth: 300, Range: 150, Damage: 10},
		{ID: "mortal_base", Team: TeamMortal, X: 500, Y: 300, Health: 500, MaxHealth: 500, Range: 200, Damage: 15, IsBase: true},

		// Ancient 陣營（右側）
		{ID: "ancient_t1", Team: TeamAncient, X: 900, Y: 300, Health: 300, MaxHealth: 300, Range: 150, Damage: 10},
		{ID: "ancient_t2", Team: TeamAncient, X: 700, Y: 300, Health: 300, MaxHealth: 300, Range: 150, Damage: 10},
		{ID: "ancient_base", Team: TeamAncient, X: 500, Y: 300, Health: 500, MaxHealth: 500, Range: 200, Damage: 15, IsBase: true},
	}
}
