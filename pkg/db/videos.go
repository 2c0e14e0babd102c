package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cartoon-ingest/pkg/domain"
	"cartoon-ingest/pkg/logging"
)

// VideoExists reports whether a video with the given archive identifier is stored.
func (c *Client) VideoExists(ctx context.Context, identifier string) (bool, error) {
	if c.videos == nil {
		return false, ErrNotConnected
	}

	n, err := c.videos.CountDocuments(ctx, bson.M{"identifier": identifier}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count videos for %s: %w", identifier, err)
	}
	return n > 0, nil
}

// InsertVideo stores a new video and sets its ID. With the unique identifier index
// in place, a second insert for the same identifier fails with ErrDuplicateVideo.
func (c *Client) InsertVideo(ctx context.Context, video *domain.Video) error {
	if c.videos == nil {
		return ErrNotConnected
	}

	video.ID = primitive.NewObjectID()
	if _, err := c.videos.InsertOne(ctx, video); err != nil {
		video.ID = primitive.NilObjectID
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateVideo, video.Identifier)
		}
		return fmt.Errorf("insert video %s: %w", video.Identifier, err)
	}
	return nil
}

// FindVideo loads a video by its hex ID.
func (c *Client) FindVideo(ctx context.Context, id string) (*domain.Video, error) {
	if c.videos == nil {
		return nil, ErrNotConnected
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", ErrVideoNotFound, id)
	}

	var video domain.Video
	if err := c.videos.FindOne(ctx, bson.M{"_id": oid}).Decode(&video); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, id)
		}
		return nil, fmt.Errorf("find video %s: %w", id, err)
	}
	return &video, nil
}

// GetAllVideos loads every stored video. Documents that do not decode into a
// Video (legacy field types) are logged by _id and counted in unreadable.
func (c *Client) GetAllVideos(ctx context.Context) (videos []domain.Video, unreadable int, err error) {
	if c.videos == nil {
		return nil, 0, ErrNotConnected
	}

	cursor, err := c.videos.Find(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query videos: %w", err)
	}
	defer cursor.Close(ctx)

	var raws []bson.Raw
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, 0, fmt.Errorf("cursor error: %w", err)
	}

	videos, skipped := decodeVideos(raws)
	if len(skipped) > 0 {
		log := logging.WithComponent("db")
		for _, s := range skipped {
			log.Warn().Str(logging.FieldVideoID, s.id).Err(s.err).Msg("skipping undecodable video document")
		}
	}
	return videos, len(skipped), nil
}

type undecodable struct {
	id  string
	err error
}

// decodeVideos decodes raw video documents, keeping the _id and error of each
// one that does not fit the Video shape.
func decodeVideos(raws []bson.Raw) ([]domain.Video, []undecodable) {
	videos := make([]domain.Video, 0, len(raws))
	var skipped []undecodable
	for _, raw := range raws {
		var v domain.Video
		if err := bson.Unmarshal(raw, &v); err != nil {
			skipped = append(skipped, undecodable{id: rawID(raw), err: err})
			continue
		}
		videos = append(videos, v)
	}
	return videos, skipped
}

func rawID(raw bson.Raw) string {
	v, err := raw.LookupErr("_id")
	if err != nil {
		return ""
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return v.String()
}

// IncrementVideoCounters atomically adds deltas to the named counters of a video.
func (c *Client) IncrementVideoCounters(ctx context.Context, id string, deltas map[string]int64) error {
	if c.videos == nil {
		return ErrNotConnected
	}
	if len(deltas) == 0 {
		return nil
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", ErrVideoNotFound, id)
	}

	inc := bson.M{}
	for field, delta := range deltas {
		inc[field] = delta
	}
	res, err := c.videos.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": inc})
	if err != nil {
		return fmt.Errorf("increment counters of %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrVideoNotFound, id)
	}
	return nil
}

// IncrementViewedCollections bumps the per-collection view tally on a user's
// document, creating the document on first use.
func (c *Client) IncrementViewedCollections(ctx context.Context, userID string, tags []string) error {
	if c.users == nil {
		return ErrNotConnected
	}
	inc := viewedCollectionsInc(tags)
	if len(inc) == 0 {
		return nil
	}
	_, err := c.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$inc": inc}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("increment viewed collections of %s: %w", userID, err)
	}
	return nil
}

// viewedCollectionsInc builds the $inc document for a set of tags. Tags that
// are empty once made field-safe are dropped; repeated tags count once each.
func viewedCollectionsInc(tags []string) bson.M {
	inc := bson.M{}
	for _, tag := range tags {
		field := fieldSafe(tag)
		if field == "" {
			continue
		}
		key := "viewedCollections." + field
		if n, ok := inc[key].(int); ok {
			inc[key] = n + 1
			continue
		}
		inc[key] = 1
	}
	return inc
}

// fieldSafe makes a collection tag usable as a document field name. The result
// is empty for tags with nothing usable left, such as "$$" or "  ".
func fieldSafe(tag string) string {
	tag = strings.TrimLeft(strings.TrimSpace(tag), "$")
	if strings.Trim(tag, ".") == "" {
		return ""
	}
	return strings.ReplaceAll(tag, ".", "_")
}
