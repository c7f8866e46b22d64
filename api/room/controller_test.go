package roomapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beka-birhanu/vinom-swarm/game"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	rooms map[string]game.RoomSnapshot
	list  []game.RoomSummary
}

func (f *fakeDirectory) List() []game.RoomSummary { return f.list }

func (f *fakeDirectory) Count() int { return len(f.list) }

func (f *fakeDirectory) Snapshot(code string) (game.RoomSnapshot, bool) {
	s, ok := f.rooms[code]
	return s, ok
}

type fakeHistory struct {
	turns map[string][]game.TurnEntry // by room id
	err   error
}

func (f *fakeHistory) History(ctx context.Context, roomID string) ([]game.TurnEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.turns[roomID], nil
}

func newTestEngine(t *testing.T, dir *fakeDirectory, options ...StatusOption) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, err := NewStatusController(dir, options...)
	require.NoError(t, err)

	engine := gin.New()
	c.RegisterPublic(engine.Group("/api/v1"))
	return engine
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	engine.ServeHTTP(w, req)
	return w
}

func TestNewStatusController(t *testing.T) {
	_, err := NewStatusController(nil)
	assert.ErrorIs(t, err, ErrNilDirectory)
}

func TestStatusController(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dir := &fakeDirectory{
		list: []game.RoomSummary{
			{Code: "111111", ID: "r1", CreatedAt: created, PlayerCount: 2, Started: true},
			{Code: "222222", ID: "r2", CreatedAt: created.Add(time.Second), PlayerCount: 1},
		},
		rooms: map[string]game.RoomSnapshot{
			"111111": {ID: "r1", Code: "111111", Started: true, Turn: 4, Players: []game.PlayerSnapshot{{ID: "a"}}},
		},
	}
	engine := newTestEngine(t, dir)

	tests := []struct {
		name     string
		path     string
		status   int
		validate func(t *testing.T, body []byte)
	}{
		{
			name:   "list rooms",
			path:   "/api/v1/rooms",
			status: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				var resp ListRoomsResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, 2, resp.Total)
				assert.Equal(t, dir.list, resp.Rooms)

				var raw map[string][]map[string]any
				require.NoError(t, json.Unmarshal(body, &raw))
				for _, key := range []string{"code", "id", "createdAt", "playerCount", "started"} {
					assert.Contains(t, raw["rooms"][0], key)
				}
			},
		},
		{
			name:   "count rooms",
			path:   "/api/v1/rooms/count",
			status: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				assert.JSONEq(t, `{"total":2}`, string(body))
			},
		},
		{
			name:   "room snapshot",
			path:   "/api/v1/rooms/111111",
			status: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				var snap game.RoomSnapshot
				require.NoError(t, json.Unmarshal(body, &snap))
				assert.Equal(t, 4, snap.Turn)
				assert.Equal(t, "a", snap.Players[0].ID)
			},
		},
		{
			name:   "unknown room",
			path:   "/api/v1/rooms/999999",
			status: http.StatusNotFound,
			validate: func(t *testing.T, body []byte) {
				assert.JSONEq(t, `{"error":"room not found"}`, string(body))
			},
		},
		{
			name:   "health",
			path:   "/api/v1/health",
			status: http.StatusOK,
			validate: func(t *testing.T, body []byte) {
				assert.JSONEq(t, `{"status":"ok","rooms":2}`, string(body))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(engine, tt.path)
			assert.Equal(t, tt.status, w.Code)
			tt.validate(t, w.Body.Bytes())
		})
	}

	t.Run("empty registry lists an empty array", func(t *testing.T) {
		w := get(newTestEngine(t, &fakeDirectory{list: []game.RoomSummary{}}), "/api/v1/rooms")
		assert.JSONEq(t, `{"rooms":[],"total":0}`, w.Body.String())
	})
}

func TestStatusController_History(t *testing.T) {
	recorded := time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
	dir := &fakeDirectory{
		rooms: map[string]game.RoomSnapshot{
			"111111": {ID: "r1", Code: "111111", Started: true, Turn: 3},
		},
	}
	history := &fakeHistory{turns: map[string][]game.TurnEntry{
		"r1": {
			{Turn: 1, RecordedAt: recorded},
			{
				Turn:       2,
				GlobalBest: &game.GlobalBestView{PointView: game.PointView{X: 1, Score: 1}, PlayerID: "a"},
				Players:    []game.PlayerTrace{{ID: "a", Role: game.RolePlayer, Pos: game.Vector2{X: 1}}},
				RecordedAt: recorded.Add(time.Second),
			},
		},
	}}

	t.Run("recorded turns", func(t *testing.T) {
		w := get(newTestEngine(t, dir, StatusWithTurnHistory(history)), "/api/v1/rooms/111111/history")
		require.Equal(t, http.StatusOK, w.Code)

		var resp HistoryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "111111", resp.Code)
		assert.Equal(t, "r1", resp.RoomID)
		assert.Equal(t, history.turns["r1"], resp.Turns)
	})

	t.Run("unknown room", func(t *testing.T) {
		w := get(newTestEngine(t, dir, StatusWithTurnHistory(history)), "/api/v1/rooms/999999/history")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"room not found"}`, w.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		w := get(newTestEngine(t, dir, StatusWithTurnHistory(&fakeHistory{err: errors.New("down")})), "/api/v1/rooms/111111/history")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("not served without a history", func(t *testing.T) {
		w := get(newTestEngine(t, dir), "/api/v1/rooms/111111/history")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
