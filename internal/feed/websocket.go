package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrSlowObserver — очередь наблюдателя переполнена, его отключают.
	ErrSlowObserver = errors.New("observer is too slow")
	// ErrObserverClosed — соединение уже закрыто.
	ErrObserverClosed = errors.New("observer closed")
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSObserver — наблюдатель поверх websocket-соединения.
// Писатель один (горутина Run), Send только кладёт сообщение в буфер.
type WSObserver struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

// NewWSObserver оборачивает соединение. buffer задаёт размер очереди исходящих сообщений.
func NewWSObserver(conn *websocket.Conn, buffer int) *WSObserver {
	if buffer <= 0 {
		buffer = 16
	}
	return &WSObserver{conn: conn, out: make(chan []byte, buffer), done: make(chan struct{})}
}

// Send ставит сообщение в очередь без блокировки.
func (o *WSObserver) Send(msg []byte) error {
	select {
	case <-o.done:
		return ErrObserverClosed
	default:
	}
	select {
	case o.out <- msg:
		return nil
	default:
		return ErrSlowObserver
	}
}

// Close закрывает соединение. Повторный вызов безопасен.
func (o *WSObserver) Close() error {
	var err error
	o.once.Do(func() {
		close(o.done)
		_ = o.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = o.conn.Close()
	})
	return err
}

// Done закрывается после отключения наблюдателя.
func (o *WSObserver) Done() <-chan struct{} { return o.done }

// Run пишет сообщения из очереди до отключения клиента, ошибки записи или отмены ctx.
func (o *WSObserver) Run(ctx context.Context) {
	go o.readLoop()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer o.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case msg := <-o.out:
			_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := o.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop нужен только для обработки control-фреймов и обнаружения отключения.
func (o *WSObserver) readLoop() {
	defer o.Close()
	o.conn.SetReadLimit(512)
	_ = o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			return
		}
	}
}
