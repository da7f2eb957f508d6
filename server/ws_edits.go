package server

import (
	"net/http"
	"time"

	"musedb/core/feed"
	"musedb/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var editFeedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 跨域由前端部署环境控制
	},
}

// EditFeedHandler 将连接升级为WebSocket并推送实时编辑事件
func (h *APIHandler) EditFeedHandler(hub *feed.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := editFeedUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("Failed to upgrade edit feed connection", logger.ErrorField(err))
			return
		}

		sub := &feed.Subscriber{Send: make(chan []byte, 64)}
		hub.Register(sub)

		go editFeedWritePump(conn, sub)
		go editFeedReadPump(conn, hub, sub)
	}
}

// editFeedWritePump 将Hub推来的事件写到连接，并维持心跳
func editFeedWritePump(conn *websocket.Conn, sub *feed.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// editFeedReadPump 只消费控制帧，连接断开时注销订阅者
func editFeedReadPump(conn *websocket.Conn, hub *feed.Hub, sub *feed.Subscriber) {
	defer func() {
		hub.Unregister(sub)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("edit feed connection error", logger.ErrorField(err))
			}
			return
		}
	}
}
