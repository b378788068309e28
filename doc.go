// Package arenabattle 提供了一個服務器權威的即時對戰服務。
//
// 兩個遠端客戶端連接後被配對進同一場對戰，交換移動、攻擊與技能
// 動作；服務器驗證並結算所有動作，再把結果廣播給房間內的每個
// 成員，使所有參與者觀察到一致的世界狀態。
//
// 權威房間引擎
//
// 核心是房間狀態機，負責：
//   - 配對：新連接進入第一個未滿的房間，沒有空位則創建新房間
//   - 玩家/英雄生命週期：陣營分配、出生點、斷線移除
//   - 動作結算：移動、普通攻擊、四個帶定時回復的技能效果
//   - 傷害與勝負判定：主堡被摧毀或英雄死亡即宣告勝者
//   - 廣播協議：所有狀態變更即時推送給房間成員
//
// WebSocket 通訊
//
// 每條客戶端連接是一條全雙工消息通道（JSON 文本幀）：
//   - 入站只有一種形狀：playerAction 包裹一個動作
//   - 出站按類型區分：welcome（單播）、playerJoined、playerLeft、
//     playerMoved、abilityUsed、damage、gameOver（廣播）
//   - 心跳檢測（Ping/Pong，54s/60s）
//   - 緩衝發送，慢客戶端不拖累房間結算
//
// 併發設計
//
// 房間是其全部狀態的唯一權威：
//   - 每個房間一把 RWMutex，動作結算互斥、快照讀取並發
//   - 配對（找房 + 加入）在註冊表鎖內原子完成
//   - 延時技能回復通過 time.AfterFunc 重新進鎖，按玩家 ID
//     重查存在性，過期計時器無法復活已移除的玩家
//   - 房間之間零共享，玩家數歸零的房間被同步回收
//
// 架構設計
//
// 系統採用分層架構設計：
//   - Handler 層：健康檢查、房間列表、靜態資源
//   - Gateway 層：連接升級、玩家身份、動作路由
//   - Manager 層：房間註冊表與配對
//   - Room 層：封裝全部對戰結算邏輯
//
// 配置選項
//
// 支援多種運行時配置：
//   - PORT 環境變數：服務監聽端口（預設 3000）
//   - PUBLIC_DIR 環境變數：客戶端靜態資源目錄
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
package arenabattle
