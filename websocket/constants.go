// websocket/constants.go
package websocket

import (
	"time"
)

// Константы для WebSocket-соединения
const (
	// Время ожидания записи сообщения клиенту
	writeWait = 10 * time.Second

	// Время ожидания сообщения от клиента
	pongWait = 60 * time.Second

	// Период отправки пинг-сообщений
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения от клиента (клиент присылает только ping)
	maxMessageSize = 4 * 1024

	// Размер очереди исходящих сообщений клиента
	sendBufferSize = 64
)

// Типы сообщений
const (
	MessageHello        = "hello"
	MessagePing         = "ping"
	MessagePong         = "pong"
	MessageRunCompleted = "run_completed"
	MessageRunFailed    = "run_failed"
	MessageError        = "error"
)
