package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/monocle-dev/scrumboard/internal/logging"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/policy"
	"github.com/monocle-dev/scrumboard/internal/realtime"
	"github.com/monocle-dev/scrumboard/internal/utils"
)

// WebSocket streams refresh notifications for one project's board to a
// member. Browsers must come from one of origins; clients that send no
// Origin header are accepted.
func WebSocket(origins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, origin)
		},
	}

	return func(ctx *gin.Context) {
		caller, err := currentUser(ctx)
		if err != nil {
			respondError(ctx, err)
			return
		}

		projectID, err := utils.ParamID(ctx, "project_id", "project id")
		if err != nil {
			respondError(ctx, err)
			return
		}

		tx := store(ctx)

		if _, err := mustExist[models.Project](tx, projectID, "Project"); err != nil {
			respondError(ctx, err)
			return
		}

		role, err := projectRole(tx, caller.ID, projectID)
		if err != nil {
			respondError(ctx, err)
			return
		}

		if err := policy.Authorize(role, policy.ActionRead, policy.ResourceProject); err != nil {
			respondError(ctx, err)
			return
		}

		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			logging.Logger.Warn("websocket upgrade failed", "project_id", projectID, "err", err)
			return
		}

		serveBoard(conn, projectID)
	}
}

func serveBoard(conn *websocket.Conn, projectID uint) {
	log := logging.Logger.With("project_id", projectID)

	conn.SetReadLimit(realtime.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(realtime.PongWait))
	})

	if err := conn.SetWriteDeadline(time.Now().Add(realtime.WriteWait)); err != nil {
		conn.Close()
		return
	}

	err := conn.WriteJSON(realtime.Message{
		Type:      "connected",
		Message:   "WebSocket connection established",
		ProjectID: projectID,
	})

	if err != nil {
		log.Warn("failed to send welcome message", "err", err)
		conn.Close()
		return
	}

	realtime.Default.Register(projectID, conn)

	done := make(chan struct{})
	defer func() {
		close(done)
		realtime.Default.Unregister(projectID, conn)
		conn.Close()
		log.Debug("websocket connection closed")
	}()

	go func() {
		ticker := time.NewTicker(realtime.PingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(realtime.WriteWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					log.Debug("ping failed", "err", err)
					return
				}
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(realtime.PongWait)); err != nil {
			return
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("websocket error", "err", err)
			}
			return
		}
	}
}
