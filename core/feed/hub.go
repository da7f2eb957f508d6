package feed

import (
	"encoding/json"
	"sync"
	"time"

	"musedb/logger"
)

// EventType 编辑事件类型
type EventType string

const (
	EventEditOpened   EventType = "edit_opened"   // 新编辑创建
	EventEditAccepted EventType = "edit_accepted" // 编辑被采纳
	EventEditRejected EventType = "edit_rejected" // 编辑被驳回
	EventEditFailed   EventType = "edit_failed"   // 编辑采纳失败，目录未变化
	EventEditNote     EventType = "edit_note"     // 编辑下新增留言
	EventEditVote     EventType = "edit_vote"     // 编辑收到投票
)

// Event 推送给审核端的编辑事件
type Event struct {
	Type      EventType `json:"type"`
	EditID    int64     `json:"editId"`
	EditGID   string    `json:"editGid,omitempty"`
	EditType  string    `json:"editType,omitempty"`
	EditorID  int64     `json:"editorId,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Subscriber 一个已连接的审核端
type Subscriber struct {
	Send chan []byte
}

// Hub 编辑事件广播中心
// 单一广播域：所有订阅者收到全部编辑事件
type Hub struct {
	subscribers map[*Subscriber]bool

	// 注册/注销通道
	register   chan *Subscriber
	unregister chan *Subscriber

	// 广播通道
	broadcast chan Event

	mu sync.RWMutex

	// 关闭信号
	done chan struct{}
}

// NewHub 创建编辑事件 Hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan Event, 256),
		done:        make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.addSubscriber(sub)

		case sub := <-h.unregister:
			h.removeSubscriber(sub)

		case evt := <-h.broadcast:
			h.fanout(evt)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	close(h.done)
}

// Register 注册订阅者
func (h *Hub) Register(sub *Subscriber) {
	h.register <- sub
}

// Unregister 注销订阅者
func (h *Hub) Unregister(sub *Subscriber) {
	h.unregister <- sub
}

// Publish 广播一条编辑事件，Hub停止后为空操作
func (h *Hub) Publish(evt Event) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}
	select {
	case h.broadcast <- evt:
	case <-h.done:
	}
}

func (h *Hub) addSubscriber(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribers[sub] = true
	logger.Info("edit feed subscriber registered", logger.Int("total", len(h.subscribers)))
}

func (h *Hub) removeSubscriber(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.Send)
	}
	logger.Info("edit feed subscriber unregistered", logger.Int("total", len(h.subscribers)))
}

func (h *Hub) fanout(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("failed to marshal edit event", logger.ErrorField(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub.Send <- payload:
		default:
			// 慢消费者直接丢弃本条，避免阻塞广播循环
			logger.Warn("edit feed subscriber too slow, dropping event",
				logger.String("type", string(evt.Type)))
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		close(sub.Send)
	}
	h.subscribers = make(map[*Subscriber]bool)
}
