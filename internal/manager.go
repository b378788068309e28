package internal

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Manager 房間註冊表 / 配對器
//
// 進程範圍內的活躍房間集合，由 main 顯式創建並注入會話層與
// HTTP 層——沒有任何套件級共享狀態。
//
// 配對規則：
//   - 新連接按創建順序掃描現有房間，進入第一個未滿（<2 人）的房間
//   - 沒有空位時創建新房間
//   - 玩家數歸零的房間在斷線處理中被同步移除
//
// 並發控制：Assign 在註冊表鎖內完成「找房 + 加入」兩步，
// 因此併發連接不可能把第三名玩家塞進同一個房間——房間本身
// 不做容量檢查，准入規則只在這裡成立。
type Manager struct {
	rooms map[string]*GameRoom
	order []string // roomID 創建順序（配對掃描順序）

	cfg    RoomConfig
	mu     sync.RWMutex
	logger *slog.Logger
}

// RoomInfo 房間列表條目（/api/rooms）
type RoomInfo struct {
	RoomID      string `json:"roomId"`
	PlayerCount int    `json:"playerCount"`
	GameRunning bool   `json:"gameRunning"`
}

// NewManager 創建房間註冊表
func NewManager(cfg RoomConfig, logger *slog.Logger) *Manager {
	return &Manager{
		rooms:  make(map[string]*GameRoom),
		cfg:    cfg,
		logger: logger,
	}
}

const maxPlayersPerRoom = 2

// Assign 為新玩家配對房間並加入
//
// 找房與 AddPlayer 在同一臨界區內完成（見類型註釋）。
func (m *Manager) Assign(playerID string, conn PlayerConn) (*GameRoom, *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var room *GameRoom
	for _, roomID := range m.order {
		if candidate := m.rooms[roomID]; candidate.PlayerCount() < maxPlayersPerRoom {
			room = candidate
			break
		}
	}

	if room == nil {
		roomID := uuid.NewString()
		room = NewGameRoom(roomID, m.cfg, m.logger)
		m.rooms[roomID] = room
		m.order = append(m.order, roomID)

		m.logger.Info("創建新房間", "room_id", roomID)
	}

	player := room.AddPlayer(playerID, conn)

	m.logger.Info("玩家已配對",
		"room_id", room.ID(),
		"player_id", playerID,
		"team", player.Team)

	return room, player
}

// Release 回收空房間
//
// 玩家數歸零的房間被立即（同步地）關閉並從註冊表移除；
// 仍有玩家的房間保持不變。
func (m *Manager) Release(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists || room.PlayerCount() > 0 {
		return
	}

	room.Close()
	delete(m.rooms, roomID)
	for i, id := range m.order {
		if id == roomID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	m.logger.Info("空房間已回收", "room_id", roomID)
}

// GetRoom 獲取房間
func (m *Manager) GetRoom(roomID string) (*GameRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return nil, fmt.Errorf("房間不存在: %s", roomID)
	}
	return room, nil
}

// ListRooms 按創建順序列出活躍房間
func (m *Manager) ListRooms() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]RoomInfo, 0, len(m.order))
	for _, roomID := range m.order {
		room := m.rooms[roomID]
		result = append(result, RoomInfo{
			RoomID:      roomID,
			PlayerCount: room.PlayerCount(),
			GameRunning: room.GameRunning(),
		})
	}
	return result
}

// Stats 統計資訊（/health）
func (m *Manager) Stats() (activeRooms, totalPlayers int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, room := range m.rooms {
		totalPlayers += room.PlayerCount()
	}
	return len(m.rooms), totalPlayers
}

// Stop 關閉所有房間（服務器關閉時調用）
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, room := range m.rooms {
		room.Close()
	}
	m.rooms = make(map[string]*GameRoom)
	m.order = nil

	m.logger.Info("房間註冊表已停止")
}
