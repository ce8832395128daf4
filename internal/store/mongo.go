package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

// MongoDealStore keeps live deals in one collection and archived deals in a
// second, append-only one. Archiving inserts into the archive collection
// first and only then removes the live document, so a crash in between leaves
// both copies rather than neither.
type MongoDealStore struct {
	live    *mongo.Collection
	archive *mongo.Collection
}

func NewMongoDealStore(client *mongo.Client, dbName, liveColl, archiveColl string) *MongoDealStore {
	db := client.Database(dbName)
	return &MongoDealStore{
		live:    db.Collection(liveColl),
		archive: db.Collection(archiveColl),
	}
}

func (s *MongoDealStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	if _, err := s.live.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "deal_id", Value: 1}},
		Options: unique,
	}); err != nil {
		return err
	}
	if _, err := s.live.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := s.archive.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "deal_id", Value: 1}},
		Options: unique,
	})
	return err
}

func (s *MongoDealStore) Save(ctx context.Context, deal model.Deal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.live.InsertOne(ctx, deal)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDealExists, deal.DealID)
	}
	return err
}

func (s *MongoDealStore) Get(ctx context.Context, dealID string) (*model.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.live.FindOne(ctx, bson.M{"deal_id": dealID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var deal model.Deal
	if err := res.Decode(&deal); err != nil {
		return nil, err
	}
	return &deal, nil
}

func (s *MongoDealStore) Update(ctx context.Context, deal model.Deal) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := s.live.ReplaceOne(ctx, bson.M{"deal_id": deal.DealID}, deal)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrDealNotFound, deal.DealID)
	}
	return nil
}

func (s *MongoDealStore) Archive(ctx context.Context, deal model.Deal) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.archive.InsertOne(ctx, deal); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDealArchived, deal.DealID)
		}
		return err
	}
	_, err := s.live.DeleteOne(ctx, bson.M{"deal_id": deal.DealID})
	return err
}

func (s *MongoDealStore) GetArchived(ctx context.Context, dealID string) (*model.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.archive.FindOne(ctx, bson.M{"deal_id": dealID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var deal model.Deal
	if err := res.Decode(&deal); err != nil {
		return nil, err
	}
	return &deal, nil
}

func (s *MongoDealStore) ListOpen(ctx context.Context) ([]model.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	statuses := []model.DealStatus{
		model.StatusInit,
		model.StatusRFQOpen,
		model.StatusQuotesCollecting,
		model.StatusEvaluating,
		model.StatusNegotiating,
	}
	cur, err := s.live.Find(ctx, bson.M{"status": bson.M{"$in": statuses}})
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()
	var deals []model.Deal
	if err := cur.All(ctx, &deals); err != nil {
		return nil, err
	}
	return deals, nil
}
