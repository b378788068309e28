package internal

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config 服務器配置
type Config struct {
	// HTTP/WebSocket 監聽端口（PORT 環境變數，預設 3000）
	Port string

	// 靜態資源目錄（客戶端文件）
	PublicDir string

	// 房間調校參數
	Room RoomConfig
}

// RoomConfig 房間調校參數
//
// 技能計時與冷卻頻率集中在這裡，測試可以縮短計時
// 而不必等待真實的 4 秒 / 10 秒。
type RoomConfig struct {
	// 冷卻遞減頻率（幀/秒）。冷卻數值以幀為單位：
	// 60 幀/秒下 q 的 120 幀即 2 秒。
	FrameRate int

	// w 技能移速加成持續時間
	SpeedBoostDuration time.Duration

	// r 技能過量治療持續時間
	OverhealDuration time.Duration
}

// DefaultRoomConfig 返回預設房間參數
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		FrameRate:          60,
		SpeedBoostDuration: 4 * time.Second,
		OverhealDuration:   10 * time.Second,
	}
}

// LoadConfig 載入服務器配置
//
// .env 文件為可選（本地開發便利），環境變數優先。
func LoadConfig(logger *slog.Logger) *Config {
	if err := godotenv.Load(); err == nil {
		logger.Info("已載入 .env 配置")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	publicDir := os.Getenv("PUBLIC_DIR")
	if publicDir == "" {
		publicDir = "public"
	}

	return &Config{
		Port:      port,
		PublicDir: publicDir,
		Room:      DefaultRoomConfig(),
	}
}
