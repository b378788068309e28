package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把一條新到達的 WebSocket 連接變成一場對戰中的玩家？
//
// 核心挑戰：
//   1. 身份：每條連接需要一個全局唯一的玩家識別碼
//   2. 綁定：連接必須綁定到配對器選定的房間，之後的動作直接路由
//   3. 心跳機制：檢測死連接（網絡異常、客戶端崩潰）
//   4. 斷線回收：移除玩家並讓配對器同步回收空房間
//
// 設計方案：
//   ✅ UUID 玩家識別碼 - 每條連接生成一次
//   ✅ 讀寫分離 - readPump 路由入站動作，writePump 排空發送緩衝
//   ✅ Ping/Pong 心跳 - 檢測死連接（54s/60s）
//   ✅ 緩衝 channel - 異步發送（慢客戶端不拖累房間結算）

const (
	// 心跳配置：54 秒 Ping 配 60 秒讀取超時（避開常見的
	// 60 秒代理超時閾值，留 6 秒余量）
	pingInterval = 54 * time.Second
	pongWait     = 60 * time.Second

	writeWait     = 10 * time.Second
	maxMessageLen = 1 << 20 // 1MB

	sendBufferSize = 256
)

var (
	// ErrConnClosed 連接已關閉，發送被跳過
	ErrConnClosed = errors.New("連接已關閉")
	// ErrSendBufferFull 發送緩衝已滿，消息被丟棄
	ErrSendBufferFull = errors.New("發送緩衝已滿")
)

// Gateway 會話網關
//
// 每條連接的膠水層：生成玩家身份、通過 Manager 配對房間、
// 轉發入站動作、斷線時移除玩家。連接的關閉責任在這裡——
// 房間只借用發送能力。
type Gateway struct {
	manager  *Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewGateway 創建會話網關
func NewGateway(manager *Manager, logger *slog.Logger) *Gateway {
	return &Gateway{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeWS 處理新的 WebSocket 連接
//
// 流程：升級 → 生成玩家 ID → 配對進房（房間廣播 playerJoined）
// → 向該連接單播 welcome（攜帶完整房間快照）→ 進入讀循環。
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	playerID := uuid.NewString()
	conn := newConn(ws)
	go conn.writePump()

	room, player := g.manager.Assign(playerID, conn)

	g.logger.Info("玩家連線",
		"player_id", playerID,
		"room_id", room.ID(),
		"team", player.Team)

	// welcome 只發給新玩家本人
	welcome := welcomeMessage{
		Type:      msgWelcome,
		PlayerID:  playerID,
		Team:      player.Team,
		GameState: room.Snapshot(),
	}
	if data, err := encodeMessage(welcome); err == nil {
		if err := conn.SendMessage(data); err != nil {
			g.logger.Debug("發送 welcome 失敗", "player_id", playerID, "error", err)
		}
	}

	go g.readPump(conn, room, playerID)
}

// readPump 讀取並路由客戶端消息
//
// 入站只有一種形狀：{type:"playerAction", action:{...}}，
// 直接路由到綁定房間的動作處理器。無法反序列化的消息記錄
// 日誌後丟棄，連接保持打開。
//
// 退出時（任何讀取錯誤或客戶端關閉）移除玩家並讓配對器
// 同步回收空房間——這是房間被刪除的唯一路徑。
func (g *Gateway) readPump(conn *Conn, room *GameRoom, playerID string) {
	defer func() {
		room.RemovePlayer(playerID)
		g.manager.Release(room.ID())
		conn.close()

		g.logger.Info("玩家斷線",
			"player_id", playerID,
			"room_id", room.ID())
	}()

	conn.ws.SetReadLimit(maxMessageLen)
	if err := conn.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		g.logger.Error("設置讀取期限失敗", "error", err)
	}
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"player_id", playerID)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.logger.Error("解析客戶端消息失敗",
				"error", err,
				"player_id", playerID)
			continue
		}

		if msg.Type == "playerAction" {
			room.HandlePlayerAction(playerID, msg.Action)
		}
	}
}

// Conn 單條客戶端連接
//
// 出站走緩衝 channel：SendMessage 永不阻塞，緩衝滿或連接
// 已關閉時返回錯誤由調用方吞掉（盡力而為語義）。send 永不
// close——writePump 通過 quit 退出，杜絕向已關閉 channel
// 發送的競態。
type Conn struct {
	ws     *websocket.Conn
	send   chan []byte
	quit   chan struct{}
	closed atomic.Bool

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		quit: make(chan struct{}),
	}
}

// SendMessage 實現 PlayerConn：非阻塞入隊
func (c *Conn) SendMessage(data []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// close 標記關閉並通知 writePump 退出（冪等）
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.quit)
	})
}

// writePump 排空發送緩衝並維持心跳
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			// 批量送出隊列中剩餘的消息
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.ws.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.quit:
			// 嘗試發送關閉幀，忽略錯誤（連接可能已斷開）
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
