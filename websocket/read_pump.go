// websocket/read_pump.go
package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// readPump обрабатывает чтение сообщений от клиента
func (c *Client) readPump(manager *Manager) {
	defer func() {
		// Отправляем сигнал отключения
		select {
		case manager.unregister <- c:
		case <-manager.done:
		}

		c.Socket.Close()
		log.Printf("Завершение readPump для клиента %s", c.ID)
	}()

	// Устанавливаем параметры подключения
	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Читаем сообщения
		_, message, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Ошибка: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			manager.sendTo(c, Message{Type: MessageError, Error: "некорректный JSON"})
			continue
		}

		switch msg.Type {
		case MessagePing:
			// Отправляем понг-сообщение обратно клиенту
			manager.sendTo(c, Message{Type: MessagePong, ClientID: c.ID})
		default:
			manager.sendTo(c, Message{Type: MessageError, Error: "неизвестный тип сообщения: " + msg.Type})
		}
	}
}
