package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	RealtimeEventMinutesUpdate  = "minutes_update"
	RealtimeEventKeywordsUpdate = "keywords_update"

	realtimeBufferSize    = 16
	realtimeWriteTimeout  = 10 * time.Second
	realtimePingInterval  = 30 * time.Second
	realtimeReadDeadline  = 60 * time.Second
	realtimeMaxClientRead = 512
)

// RealtimeMessage is one event broadcast to everyone watching a meeting.
type RealtimeMessage struct {
	MeetingID int64  `json:"meeting_id"`
	EventType string `json:"type"`
	Payload   any    `json:"payload"`
}

// RealtimeDispatcher fans meeting events out to websocket subscribers. Slow
// subscribers drop messages instead of blocking the publisher.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]map[int64]*realtimeSubscriber),
		bufferSize:  realtimeBufferSize,
	}
}

// Subscribe registers a watcher on one meeting. The returned cleanup is
// idempotent and also runs when ctx is done.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, meetingID int64) (<-chan RealtimeMessage, func()) {
	if meetingID <= 0 {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(meetingID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(meetingID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the message to every current subscriber of its meeting.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if d == nil || message.MeetingID <= 0 || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.MeetingID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(meetingID int64, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[meetingID]; !ok {
		d.subscribers[meetingID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[meetingID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(meetingID, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[meetingID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, meetingID)
		}
	}
	d.mu.Unlock()
}

var realtimeUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleMeetingSocket upgrades the connection and streams meeting events
// until the client goes away.
func (h *httpHandler) handleMeetingSocket(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	if _, err := h.meetings.GetMeeting(c.Request.Context(), meetingID); err != nil {
		h.writeDomainError(c, "socket", err)
		return
	}

	conn, err := realtimeUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stream, unsubscribe := h.realtime.Subscribe(ctx, meetingID)
	defer unsubscribe()

	// drain client frames so close and pong frames are processed
	go func() {
		defer cancel()
		conn.SetReadLimit(realtimeMaxClientRead)
		_ = conn.SetReadDeadline(time.Now().Add(realtimeReadDeadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(realtimeReadDeadline))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(realtimePingInterval)
	defer pings.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case message, open := <-stream:
			if !open {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(realtimeWriteTimeout))
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(realtimeWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
