package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Streak tracks consecutive-day completion activity for one user. There is at
// most one document per user; it is created lazily on the first evaluation.
// LastActivityDate is a calendar day in YYYY-MM-DD form, empty until the first
// completion is counted.
type Streak struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID             primitive.ObjectID `bson:"userId" json:"userId"`
	DaysConsecutive    int                `bson:"daysConsecutive" json:"daysConsecutive"`
	MaxDaysConsecutive int                `bson:"maxDaysConsecutive" json:"maxDaysConsecutive"`
	LastActivityDate   string             `bson:"lastActivityDate,omitempty" json:"lastActivityDate,omitempty"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}
