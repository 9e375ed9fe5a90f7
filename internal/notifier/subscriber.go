package notifier

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// wsSubscriber owns one WebSocket connection. Messages queue on send and are
// written in order by writeLoop.
type wsSubscriber struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	onFailure    func(id string)
	log          *logger.Logger
}

func newWSSubscriber(
	conn *websocket.Conn,
	buffer int,
	writeTimeout time.Duration,
	onFailure func(id string),
	log *logger.Logger,
) *wsSubscriber {
	return &wsSubscriber{
		id:           uuid.NewString(),
		conn:         conn,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		onFailure:    onFailure,
		log:          log,
	}
}

func (s *wsSubscriber) ID() string {
	return s.id
}

// Send queues msg without blocking.
func (s *wsSubscriber) Send(msg []byte) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the writer and closes the connection. Safe to call more than once.
func (s *wsSubscriber) Close() error {
	var err error

	s.closeOnce.Do(func() {
		close(s.done)

		deadline := time.Now().Add(closeGracePeriod)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)

		err = s.conn.Close()
	})

	return err
}

func (s *wsSubscriber) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				s.fail(err)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

// readLoop discards inbound frames. It returns when the peer goes away.
func (s *wsSubscriber) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debugf("subscriber %s read error: %v", s.id, err)
			}
			s.fail(nil)
			return
		}
	}
}

func (s *wsSubscriber) fail(err error) {
	select {
	case <-s.done:
		return
	default:
	}

	if err != nil {
		droppedInc("write_error")
		s.log.Warnf("subscriber %s write failed: %v", s.id, err)
	}
	s.onFailure(s.id)
}
