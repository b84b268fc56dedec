package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/water-quality-dashboard/internal/application/dto"
	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

// Типы сообщений, которые получает браузер
const (
	MessageSnapshot  = "snapshot"
	MessageRejection = "rejection"
)

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"` // "snapshot" или "rejection"
	Data interface{} `json:"data"`
}

// Hub управляет WebSocket клиентами и рассылает сообщения
// Реализует интерфейс port.NotificationService
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для broadcast сообщений
	broadcast chan Message

	// Канал для регистрации клиентов
	register chan *Client

	// Канал для удаления клиентов
	unregister chan *Client

	// Закрывается при выходе из Run
	done chan struct{}

	// Mutex для защиты clients map
	mu sync.RWMutex

	// Вызывается с числом клиентов после каждого изменения
	onCount func(int)

	// Logger
	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// OnClientCount задает наблюдателя за числом клиентов (например, gauge Prometheus).
// Вызывать до Run.
func (h *Hub) OnClientCount(fn func(int)) {
	h.onCount = fn
}

func (h *Hub) reportCount(total int) {
	if h.onCount != nil {
		h.onCount(total)
	}
}

// Run запускает hub до отмены ctx (должен быть запущен в отдельной goroutine)
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			h.reportCount(0)
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.reportCount(total)
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			total := len(h.clients)
			h.mu.Unlock()
			h.reportCount(total)
			h.logger.Debug("Client unregistered", "total_clients", total)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// deliver рассылает сообщение; клиенты с заполненным буфером отключаются
func (h *Hub) deliver(message Message) {
	h.mu.Lock()
	dropped := 0
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			h.remove(client)
			dropped++
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	if dropped > 0 {
		h.reportCount(total)
		h.logger.Warn("Client channel full, disconnected", "dropped", dropped, "type", message.Type)
	}
}

// remove вызывается под h.mu
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.remove(client)
	}
}

// Register регистрирует нового клиента. После остановки hub канал
// клиента сразу закрывается, и WritePump завершает соединение.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister удаляет клиента; после остановки hub ничего не делает
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast отправляет snapshot всем клиентам (реализация port.NotificationService)
func (h *Hub) Broadcast(snapshot *dto.SnapshotDTO) {
	h.enqueue(Message{Type: MessageSnapshot, Data: snapshot})
}

// BroadcastRejection сообщает клиентам об отклоненных показаниях (реализация port.NotificationService)
func (h *Hub) BroadcastRejection(report *dto.RejectionReportDTO) {
	h.enqueue(Message{Type: MessageRejection, Data: report})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", message.Type)
	}
}

// ClientCount возвращает количество подключенных клиентов (реализация port.NotificationService)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
