package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"cartoon-ingest/pkg/domain"
)

// ErrReactionConflict means the reaction changed between read and write.
var ErrReactionConflict = errors.New("reaction changed concurrently")

// FindReaction returns the user's reaction to a video, or nil if there is none.
func (c *Client) FindReaction(ctx context.Context, userID, videoID string) (*domain.Reaction, error) {
	if c.reactions == nil {
		return nil, ErrNotConnected
	}

	var r domain.Reaction
	err := c.reactions.FindOne(ctx, bson.M{"userId": userID, "videoId": videoID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reaction: %w", err)
	}
	return &r, nil
}

// InsertReaction stores a first reaction. A concurrent insert for the same user and
// video loses against the unique index and reports ErrReactionConflict.
func (c *Client) InsertReaction(ctx context.Context, userID, videoID string, kind domain.ReactionKind) error {
	if c.reactions == nil {
		return ErrNotConnected
	}

	_, err := c.reactions.InsertOne(ctx, domain.Reaction{
		UserID:    userID,
		VideoID:   videoID,
		Kind:      kind,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrReactionConflict
		}
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

// DeleteReaction removes the reaction if it still has the expected kind.
func (c *Client) DeleteReaction(ctx context.Context, userID, videoID string, kind domain.ReactionKind) error {
	if c.reactions == nil {
		return ErrNotConnected
	}

	res, err := c.reactions.DeleteOne(ctx, bson.M{"userId": userID, "videoId": videoID, "kind": kind})
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrReactionConflict
	}
	return nil
}

// SwitchReaction changes the reaction kind if it still has the expected old kind.
func (c *Client) SwitchReaction(ctx context.Context, userID, videoID string, from, to domain.ReactionKind) error {
	if c.reactions == nil {
		return ErrNotConnected
	}

	res, err := c.reactions.UpdateOne(ctx,
		bson.M{"userId": userID, "videoId": videoID, "kind": from},
		bson.M{"$set": bson.M{"kind": to, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("switch reaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrReactionConflict
	}
	return nil
}
