// Package memory manages per-session chat history for the query pipeline.
package memory

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// MessageCollection 为历史消息的 Mongo 集合名。
const MessageCollection = "MESSAGE"

// HistoryStore persists chat turns per (user, session).
type HistoryStore interface {
	Append(ctx context.Context, msg model.ChatMessage) error
	List(ctx context.Context, userNo, sessionNo string) ([]model.ChatMessage, error)
	Clear(ctx context.Context, userNo, sessionNo string) (int64, error)
}

// mongoHistory 基于 Mongo MESSAGE 集合的历史存储。
type mongoHistory struct {
	coll *mongo.Collection
}

// NewMongoHistory 创建 Mongo 历史存储。
func NewMongoHistory(coll *mongo.Collection) HistoryStore {
	return &mongoHistory{coll: coll}
}

func (s *mongoHistory) Append(ctx context.Context, msg model.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *mongoHistory) List(ctx context.Context, userNo, sessionNo string) ([]model.ChatMessage, error) {
	filter := bson.M{"USER_NO": userNo, "SESSION_NO": sessionNo}
	opts := mongoopts.Find().SetSort(bson.D{{Key: "CREATED_AT", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	defer cur.Close(ctx)

	var out []model.ChatMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return out, nil
}

// Clear 同时删除历史遗留的小写键行。
func (s *mongoHistory) Clear(ctx context.Context, userNo, sessionNo string) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"USER_NO": userNo, "SESSION_NO": sessionNo},
		bson.M{"user_no": userNo, "session_no": sessionNo},
	}}
	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return res.DeletedCount, nil
}
