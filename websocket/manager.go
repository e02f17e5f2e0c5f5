// websocket/manager.go
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/LilVoxy/ledger_analytics/ETL/models"
)

// ErrManagerStopped менеджер уже остановлен
var ErrManagerStopped = errors.New("websocket-менеджер остановлен")

// Создание нового менеджера WebSocket-соединений
func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 16),
		direct:     make(chan directMessage, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run запускает работу менеджера до отмены ctx
func (manager *Manager) Run(ctx context.Context) {
	defer func() {
		close(manager.done)
		for id, client := range manager.clients {
			close(client.Send)
			delete(manager.clients, id)
		}
		manager.connected.Store(0)
		log.Println("WebSocket-менеджер остановлен")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-manager.register:
			manager.clients[client.ID] = client
			manager.connected.Store(int64(len(manager.clients)))
			log.Printf("👤 Клиент %s подключился", client.ID)

		case client := <-manager.unregister:
			if _, ok := manager.clients[client.ID]; ok {
				delete(manager.clients, client.ID)
				close(client.Send)
				manager.connected.Store(int64(len(manager.clients)))
				log.Printf("👤 Клиент %s отключился", client.ID)
			}

		case message := <-manager.broadcast:
			// Рассылаем сообщение всем подключенным клиентам
			manager.broadcastMessage(message)

		case msg := <-manager.direct:
			// Клиент мог отключиться, пока сообщение ждало в очереди
			if client, ok := manager.clients[msg.client.ID]; ok && client == msg.client {
				select {
				case client.Send <- msg.data:
				default:
				}
			}
		}
	}
}

// broadcastMessage отправляет сообщение всем подключенным клиентам.
// Клиент с переполненной очередью отключается.
func (manager *Manager) broadcastMessage(message []byte) {
	for id, client := range manager.clients {
		select {
		case client.Send <- message:
		default:
			close(client.Send)
			delete(manager.clients, id)
			log.Printf("Клиент %s не успевает читать сообщения и отключен", id)
		}
	}
	manager.connected.Store(int64(len(manager.clients)))
}

// ClientCount возвращает количество подключенных клиентов
func (manager *Manager) ClientCount() int {
	return int(manager.connected.Load())
}

// Publish рассылает сообщение всем клиентам
func (manager *Manager) Publish(msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case manager.broadcast <- data:
		return nil
	case <-manager.done:
		return ErrManagerStopped
	}
}

// PublishRunCompleted уведомляет панели о завершении запуска ETL и обновленных отчетах
func (manager *Manager) PublishRunCompleted(run models.ETLRunLog, reports []string, warnings []string) error {
	return manager.Publish(Message{
		Type:     MessageRunCompleted,
		Run:      &run,
		Reports:  reports,
		Warnings: warnings,
	})
}

// PublishRunFailed уведомляет панели о неудачном запуске ETL
func (manager *Manager) PublishRunFailed(run models.ETLRunLog) error {
	return manager.Publish(Message{
		Type:  MessageRunFailed,
		Run:   &run,
		Error: run.ErrorMessage,
	})
}

// sendTo ставит сообщение в очередь одного клиента через горутину Run
func (manager *Manager) sendTo(c *Client, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Ошибка кодирования сообщения для клиента %s: %v", c.ID, err)
		return err
	}

	select {
	case manager.direct <- directMessage{client: c, data: data}:
		return nil
	case <-manager.done:
		return ErrManagerStopped
	}
}
