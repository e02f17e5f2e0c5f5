// websocket/connection_handler.go
package websocket

import (
	"log"
	"net/http"

	"github.com/google/uuid"
)

// HandleConnections обрабатывает WebSocket-соединения панелей мониторинга
func (manager *Manager) HandleConnections(w http.ResponseWriter, r *http.Request) {
	// Устанавливаем WebSocket-соединение
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Ошибка при установке WebSocket-соединения:", err)
		return
	}

	// Создаем нового клиента
	client := &Client{
		ID:     uuid.NewString(),
		Socket: conn,
		Send:   make(chan []byte, sendBufferSize),
	}

	// Регистрируем клиента в менеджере
	select {
	case manager.register <- client:
	case <-manager.done:
		conn.Close()
		return
	}
	log.Printf("✅ Клиент %s подключился с адреса %s", client.ID, r.RemoteAddr)

	manager.sendTo(client, Message{Type: MessageHello, ClientID: client.ID})

	// Запускаем горутины для чтения и отправки сообщений
	go client.readPump(manager)
	go client.writePump()
}
