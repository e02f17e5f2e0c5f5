// websocket/types.go
package websocket

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
)

// Структура сообщения для обмена через WebSocket
type Message struct {
	Type     string            `json:"type"`
	ClientID string            `json:"clientId,omitempty"`
	Run      *models.ETLRunLog `json:"run,omitempty"`
	Reports  []string          `json:"reports,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
	Error    string            `json:"error,omitempty"`
	SentAt   time.Time         `json:"sentAt"`
}

// Клиент WebSocket (панель мониторинга)
type Client struct {
	ID     string
	Socket *websocket.Conn
	Send   chan []byte
}

// Менеджер WebSocket-соединений. Картой клиентов и каналами Send владеет только горутина Run.
type Manager struct {
	clients    map[string]*Client
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	connected  atomic.Int64
}

// directMessage сообщение одному клиенту (hello, pong, error)
type directMessage struct {
	client *Client
	data   []byte
}

// Конфигурация WebSocket-соединения
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Разрешаем подключения с любого источника
	},
}
