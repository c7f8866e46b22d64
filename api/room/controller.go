// Package roomapi exposes read-only room status over HTTP.
package roomapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/beka-birhanu/vinom-swarm/service/i"
	"github.com/gin-gonic/gin"
)

var ErrNilDirectory = errors.New("room directory is required")

// StatusController serves room listings and snapshots.
type StatusController struct {
	rooms   i.RoomDirectory
	history i.TurnHistory // nil when no turn history is kept
}

type StatusOption func(*StatusController)

// StatusWithTurnHistory serves the recorded turns of live rooms.
func StatusWithTurnHistory(h i.TurnHistory) StatusOption {
	return func(sc *StatusController) {
		sc.history = h
	}
}

// NewStatusController initializes a StatusController.
func NewStatusController(rooms i.RoomDirectory, options ...StatusOption) (*StatusController, error) {
	if rooms == nil {
		return nil, ErrNilDirectory
	}
	sc := &StatusController{rooms: rooms}
	for _, opt := range options {
		opt(sc)
	}
	return sc, nil
}

// RegisterPublic registers public routes.
func (sc *StatusController) RegisterPublic(route *gin.RouterGroup) {
	route.GET("/health", sc.health)

	rooms := route.Group("/rooms")
	{
		rooms.GET("", sc.list)
		rooms.GET("/count", sc.count)
		rooms.GET("/:code", sc.room)
		if sc.history != nil {
			rooms.GET("/:code/history", sc.turns)
		}
	}
}

func (sc *StatusController) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, HealthResponse{Status: "ok", Rooms: sc.rooms.Count()})
}

// list handles the room enumeration.
func (sc *StatusController) list(ctx *gin.Context) {
	rooms := sc.rooms.List()
	ctx.JSON(http.StatusOK, ListRoomsResponse{Rooms: rooms, Total: len(rooms)})
}

func (sc *StatusController) count(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, CountResponse{Total: sc.rooms.Count()})
}

// room returns the snapshot of a single room.
func (sc *StatusController) room(ctx *gin.Context) {
	code := strings.TrimSpace(ctx.Params.ByName("code"))
	snap, ok := sc.rooms.Snapshot(code)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	ctx.JSON(http.StatusOK, snap)
}

// turns returns the recorded turns of a live room, oldest first.
func (sc *StatusController) turns(ctx *gin.Context) {
	code := strings.TrimSpace(ctx.Params.ByName("code"))
	snap, ok := sc.rooms.Snapshot(code)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	turns, err := sc.history.History(ctx.Request.Context(), snap.ID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "reading turn history failed"})
		return
	}
	ctx.JSON(http.StatusOK, HistoryResponse{Code: snap.Code, RoomID: snap.ID, Turns: turns})
}
