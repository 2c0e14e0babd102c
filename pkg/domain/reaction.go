package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReactionKind is the kind of a user's reaction to a video.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Valid reports whether k is a known reaction kind.
func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionDislike
}

// CounterField returns the video counter a reaction of this kind contributes to.
func (k ReactionKind) CounterField() string {
	switch k {
	case ReactionLike:
		return "likes"
	case ReactionDislike:
		return "dislikes"
	default:
		return ""
	}
}

// Reaction records that a user reacted to a video. At most one exists per
// (UserID, VideoID) pair.
type Reaction struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"userId"`
	VideoID   string             `bson:"videoId" json:"videoId"`
	Kind      ReactionKind       `bson:"kind" json:"kind"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
