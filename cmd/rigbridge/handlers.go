package main

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/rigbridge/pkg/protocol"
)

// sessionWriteTimeout bounds each write to a browser session
const sessionWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSink adapts a WebSocket connection to hub.Sink. Broadcasts and command
// replies come from different goroutines, so writes are serialized.
type wsSink struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func (s *wsSink) Send(msg interface{}) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(sessionWriteTimeout))
	return s.conn.WriteJSON(msg)
}

// handleHome serves the main web interface
func (d *RigBridgeDaemon) handleHome(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":        "rigbridge",
		"default_step": d.config.UI.DefaultStep,
	})
}

// handleWebSocket runs one session: the latest state on join, every poll
// broadcast after that, and a reply for each command received
func (d *RigBridgeDaemon) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		d.logger.Warnf("session", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	if err := d.engine.Subscribe(sink); err != nil {
		d.logger.Warnf("session", "Session dropped on join: %v", err)
		return
	}
	defer d.engine.Unsubscribe(sink)

	d.logger.Info("session", "Session connected", map[string]interface{}{
		"remote": c.Request.RemoteAddr,
	})

	for {
		var req protocol.CommandRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				d.logger.Debugf("session", "WebSocket read error: %v", err)
			}
			break
		}

		reply := d.engine.HandleCommand(req)
		if err := sink.Send(reply); err != nil {
			d.logger.Debugf("session", "WebSocket write error: %v", err)
			break
		}
	}

	d.logger.Info("session", "Session disconnected", map[string]interface{}{
		"remote": c.Request.RemoteAddr,
	})
}

// handleGetState returns the latest polled snapshot
func (d *RigBridgeDaemon) handleGetState(c *gin.Context) {
	latest, ok := d.engine.LatestState()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, protocol.NewErrorMessage("no state polled yet"))
		return
	}
	c.JSON(http.StatusOK, latest)
}

// handleCommand executes one command without holding a session open
func (d *RigBridgeDaemon) handleCommand(c *gin.Context) {
	var req protocol.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, protocol.NewErrorMessage("invalid request: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, d.engine.HandleCommand(req))
}

// handleGetStatus returns engine status
func (d *RigBridgeDaemon) handleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, d.engine.Status())
}

// handleGetJournal returns recent journal entries and totals
func (d *RigBridgeDaemon) handleGetJournal(c *gin.Context) {
	journal := d.engine.Journal()
	if journal == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "command journal is disabled",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be a positive integer",
		})
		return
	}

	entries, err := journal.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	stats, err := journal.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
		"stats":   stats,
	})
}
