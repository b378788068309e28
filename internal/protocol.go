package internal

import "encoding/json"

// 線上協議
//
// 所有消息為 UTF-8 文本幀內的 JSON 物件。入站只有一種形狀
// （playerAction 包裹一個動作）；出站按 type 區分，除 welcome
// 為單播外全部廣播給房間內所有成員。

// 入站動作類型
const (
	ActionMove    = "move"
	ActionAbility = "ability"
	ActionAttack  = "attack"
)

// ClientMessage 客戶端入站消息
type ClientMessage struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

// Action 玩家動作
//
// 三種動作共用一個結構：move 使用 X/Y，ability 使用 Ability，
// attack 只看 Type。未知類型被靜默忽略。
type Action struct {
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Ability string  `json:"ability"`
}

// 出站消息類型
const (
	msgWelcome      = "welcome"
	msgPlayerJoined = "playerJoined"
	msgPlayerLeft   = "playerLeft"
	msgPlayerMoved  = "playerMoved"
	msgAbilityUsed  = "abilityUsed"
	msgDamage       = "damage"
	msgGameOver     = "gameOver"
)

// GameState 房間狀態快照（welcome 消息攜帶）
type GameState struct {
	Players     []*Player `json:"players"`
	Towers      []*Tower  `json:"towers"`
	GameRunning bool      `json:"gameRunning"`
}

type welcomeMessage struct {
	Type      string     `json:"type"`
	PlayerID  string     `json:"playerId"`
	Team      Team       `json:"team"`
	GameState *GameState `json:"gameState"`
}

type playerJoinedMessage struct {
	Type   string  `json:"type"`
	Player *Player `json:"player"`
}

type playerLeftMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

type playerMovedMessage struct {
	Type     string  `json:"type"`
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type abilityUsedMessage struct {
	Type     string     `json:"type"`
	PlayerID string     `json:"playerId"`
	Ability  AbilityKey `json:"ability"`
	Position position   `json:"position"`
}

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// damageMessage 傷害事件：target 是完整的英雄或防禦塔物件
type damageMessage struct {
	Type      string `json:"type"`
	Target    any    `json:"target"`
	Damage    int    `json:"damage"`
	NewHealth int    `json:"newHealth"`
}

type gameOverMessage struct {
	Type   string `json:"type"`
	Winner string `json:"winner"`
}

// encodeMessage 序列化出站消息
func encodeMessage(v any) ([]byte, error) {
	return json.Marshal(v)
}
