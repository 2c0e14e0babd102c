package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Video is an ingested, playable video stored in the videos collection.
type Video struct {
	// ID is assigned by the store on insert.
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// Identifier is the archive identifier the record was built from. Unique.
	Identifier string `bson:"identifier" json:"identifier"`

	Title       *string  `bson:"title" json:"title"`
	Description *string  `bson:"description" json:"description"`
	Author      *string  `bson:"author" json:"author"`
	Date        *string  `bson:"date" json:"date"`
	MediaType   *string  `bson:"mediatype" json:"mediatype"`
	Collection  []string `bson:"collection" json:"collection"`

	// DescriptionText is Description with markup stripped, for search and previews.
	DescriptionText string `bson:"descriptionText,omitempty" json:"descriptionText,omitempty"`

	Thumbnail string `bson:"thumbnail" json:"thumbnail"`
	VideoURL  string `bson:"videoUrl" json:"videoUrl"`

	Views    int64 `bson:"views" json:"views"`
	Likes    int64 `bson:"likes" json:"likes"`
	Dislikes int64 `bson:"dislikes" json:"dislikes"`

	CrawledAt time.Time `bson:"crawledAt" json:"crawledAt"`
}

// NewVideo builds the record for a catalog entry whose media file was resolved.
// Counters start at zero and the collection is never nil.
func NewVideo(entry CatalogEntry, videoURL, thumbnail string, now time.Time) *Video {
	collection := entry.Collection
	if collection == nil {
		collection = []string{}
	}
	return &Video{
		Identifier:  entry.Identifier,
		Title:       entry.Title,
		Description: entry.Description,
		Author:      entry.Creator,
		Date:        entry.Date,
		MediaType:   entry.MediaType,
		Collection:  collection,
		Thumbnail:   thumbnail,
		VideoURL:    videoURL,
		CrawledAt:   now,
	}
}
