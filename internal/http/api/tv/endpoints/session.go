package endpoints

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv/packets"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/player"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session streams decisions to one TV. Only the newest undelivered
// decision is kept; a TV that falls behind skips straight to it.
type session struct {
	conn     *websocket.Conn
	screenID int
	send     chan model.PlaybackDecision
	now      func() time.Time
	logger   zerolog.Logger
}

// push is the player's OnChange. It is only ever called from the player
// goroutine, so draining then sending cannot block.
func (s *session) push(d model.PlaybackDecision) {
	select {
	case <-s.send:
	default:
	}
	s.send <- d
}

// GET /api/tv/devices/:device_id/session
func (t *TvController) openSession(c *gin.Context) {
	deviceID := c.Param("device_id")
	screen, err := t.store.GetScreenByDeviceID(deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not paired"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("websocket upgrade failed")
		return
	}

	s := &session{
		conn:     conn,
		screenID: screen.ID,
		send:     make(chan model.PlaybackDecision, 1),
		now:      t.now,
		logger:   log.With().Int("screen_id", screen.ID).Str("device_id", deviceID).Logger(),
	}
	s.logger.Info().Msg("tv session opened")

	ctx, cancel := context.WithCancel(c.Request.Context())
	p := player.New(player.Config{
		ScreenID:     screen.ID,
		Engine:       t.engine,
		Source:       t.cache,
		Bus:          t.bus,
		PollInterval: t.poll,
		OnChange:     s.push,
		Now:          t.now,
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	go s.readPump(cancel)

	s.writePump(ctx)
	cancel()
	<-done
	s.logger.Info().Msg("tv session closed")
}

// readPump only exists to process pongs and notice the TV going away.
func (s *session) readPump(cancel context.CancelFunc) {
	defer cancel()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case d := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteJSON(packets.SessionMessage{
				Type:       packets.MessageDecision,
				ScreenID:   s.screenID,
				ServerTime: s.now().UTC().Format(time.RFC3339),
				Decision:   d,
			})
			if err != nil {
				s.logger.Debug().Err(err).Msg("tv write failed")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
