package repo

import (
	"context"
	"errors"
	"time"

	"github.com/beka-birhanu/vinom-swarm/game"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNilClient = errors.New("mongo client is required")

// PointDocument is a stored position and its score.
type PointDocument struct {
	X     float64 `bson:"x"`
	Y     float64 `bson:"y"`
	Score float64 `bson:"score"`
}

// GlobalBestDocument is a stored global best.
type GlobalBestDocument struct {
	PointDocument `bson:",inline"`
	PlayerID      string `bson:"playerId"`
}

// PlayerDocument is the stored state of one member after a turn.
type PlayerDocument struct {
	ID     string        `bson:"id"`
	Name   string        `bson:"name"`
	Role   string        `bson:"role"`
	X      float64       `bson:"x"`
	Y      float64       `bson:"y"`
	VelX   float64       `bson:"velX"`
	VelY   float64       `bson:"velY"`
	PBest  PointDocument `bson:"pbest"`
	Choice *game.Choice  `bson:"choice,omitempty"`
}

// TurnRecord is one stored turn.
type TurnRecord struct {
	RoomID     string              `bson:"roomId"`
	Code       string              `bson:"code"`
	Turn       int                 `bson:"turn"`
	GlobalBest *GlobalBestDocument `bson:"gbest"`
	Players    []PlayerDocument    `bson:"players"`
	RecordedAt time.Time           `bson:"recordedAt"`
}

func (t TurnRecord) entry() game.TurnEntry {
	e := game.TurnEntry{
		Turn:       t.Turn,
		Players:    make([]game.PlayerTrace, 0, len(t.Players)),
		RecordedAt: t.RecordedAt,
	}
	if t.GlobalBest != nil {
		e.GlobalBest = &game.GlobalBestView{
			PointView: game.PointView(t.GlobalBest.PointDocument),
			PlayerID:  t.GlobalBest.PlayerID,
		}
	}
	for _, p := range t.Players {
		e.Players = append(e.Players, game.PlayerTrace{
			ID:     p.ID,
			Name:   p.Name,
			Role:   game.ParseRole(p.Role),
			Pos:    game.Vector2{X: p.X, Y: p.Y},
			Vel:    game.Vector2{X: p.VelX, Y: p.VelY},
			PBest:  game.PointView(p.PBest),
			Choice: p.Choice,
		})
	}
	return e
}

// TurnHistoryRepo appends the state of each finished turn to a collection.
// Nothing is ever read back into a live room.
type TurnHistoryRepo struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewTurnHistoryRepo creates a TurnHistoryRepo with the given MongoDB client, database name, and collection name.
func NewTurnHistoryRepo(client *mongo.Client, dbName, collectionName string) (*TurnHistoryRepo, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &TurnHistoryRepo{
		collection: client.Database(dbName).Collection(collectionName),
		now:        time.Now,
	}, nil
}

// EnsureIndexes creates the (roomId, turn) index used by History.
func (r *TurnHistoryRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "turn", Value: 1}},
	})
	return err
}

// Record inserts the snapshot taken after a turn.
func (r *TurnHistoryRepo) Record(ctx context.Context, snap game.RoomSnapshot) error {
	if _, err := r.collection.InsertOne(ctx, toRecord(snap, r.now())); err != nil {
		return errors.New("unexpected error: " + err.Error())
	}
	return nil
}

// History returns the recorded turns of a room in turn order.
func (r *TurnHistoryRepo) History(ctx context.Context, roomID string) ([]game.TurnEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "turn", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, errors.New("unexpected error: " + err.Error())
	}
	defer cursor.Close(ctx)

	var records []TurnRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.New("unexpected error: " + err.Error())
	}

	entries := make([]game.TurnEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec.entry())
	}
	return entries, nil
}

func toRecord(snap game.RoomSnapshot, at time.Time) TurnRecord {
	rec := TurnRecord{
		RoomID:     snap.ID,
		Code:       snap.Code,
		Turn:       snap.Turn,
		Players:    make([]PlayerDocument, 0, len(snap.Players)),
		RecordedAt: at,
	}

	if snap.GlobalBest != nil {
		rec.GlobalBest = &GlobalBestDocument{
			PointDocument: PointDocument(snap.GlobalBest.PointView),
			PlayerID:      snap.GlobalBest.PlayerID,
		}
	}

	for _, p := range snap.Players {
		rec.Players = append(rec.Players, PlayerDocument{
			ID:     p.ID,
			Name:   p.Name,
			Role:   string(p.Role),
			X:      p.Pos.X,
			Y:      p.Pos.Y,
			VelX:   p.Vel.X,
			VelY:   p.Vel.Y,
			PBest:  PointDocument(p.PBest),
			Choice: p.PendingChoice,
		})
	}
	return rec
}
