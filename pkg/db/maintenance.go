package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VideoUpdate is a set/unset pair applied to one video document.
type VideoUpdate struct {
	ID    any
	Set   bson.M
	Unset []string
}

// LegacyCounterDocs returns the raw documents that still carry fields written by
// earlier versions of the app: a duplicated "id", or singular "like"/"view" counters.
func (c *Client) LegacyCounterDocs(ctx context.Context) ([]bson.M, error) {
	if c.videos == nil {
		return nil, ErrNotConnected
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"id": bson.M{"$exists": true}},
		bson.M{"like": bson.M{"$exists": true}},
		bson.M{"view": bson.M{"$exists": true}},
	}}
	projection := bson.M{"id": 1, "like": 1, "view": 1, "likes": 1, "views": 1}

	cursor, err := c.videos.Find(ctx, filter, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("query legacy videos: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode legacy videos: %w", err)
	}
	return docs, nil
}

// ApplyVideoUpdates writes all updates in one unordered bulk write and returns the
// number of modified documents.
func (c *Client) ApplyVideoUpdates(ctx context.Context, updates []VideoUpdate) (int64, error) {
	if c.videos == nil {
		return 0, ErrNotConnected
	}
	if len(updates) == 0 {
		return 0, nil
	}

	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		doc := bson.M{}
		if len(u.Set) > 0 {
			doc["$set"] = u.Set
		}
		if len(u.Unset) > 0 {
			unset := bson.M{}
			for _, f := range u.Unset {
				unset[f] = ""
			}
			doc["$unset"] = unset
		}
		if len(doc) == 0 {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": u.ID}).SetUpdate(doc))
	}
	if len(models) == 0 {
		return 0, nil
	}

	res, err := c.videos.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bulk update videos: %w", err)
	}
	return res.ModifiedCount, nil
}

// ResetVideoCounters zeroes views, likes and dislikes on every video and returns
// how many videos were matched.
func (c *Client) ResetVideoCounters(ctx context.Context) (int64, error) {
	if c.videos == nil {
		return 0, ErrNotConnected
	}

	res, err := c.videos.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{"views": 0, "likes": 0, "dislikes": 0}})
	if err != nil {
		return 0, fmt.Errorf("reset counters: %w", err)
	}
	return res.MatchedCount, nil
}
