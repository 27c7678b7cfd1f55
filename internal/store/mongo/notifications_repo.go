package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gobarber/backend/internal/domain"
)

const notificationsCollection = "notifications"

type notificationDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Content   string             `bson:"content"`
	User      int64              `bson:"user"`
	Read      bool               `bson:"read"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func toDoc(n domain.Notification) notificationDoc {
	return notificationDoc{
		ID:        primitive.NewObjectID(),
		Content:   n.Content,
		User:      n.UserID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func (d notificationDoc) domain() domain.Notification {
	return domain.Notification{
		ID:        d.ID.Hex(),
		Content:   d.Content,
		UserID:    d.User,
		Read:      d.Read,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type NotificationRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewNotificationRepo(db *mongo.Database) *NotificationRepo {
	return &NotificationRepo{
		coll: db.Collection(notificationsCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the index used to list a provider's notifications,
// newest first.
func (r *NotificationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("user_created_at"),
	})
	return err
}

// Create stores n unread. Timestamps are set to the current time when zero.
func (r *NotificationRepo) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	now := r.now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	n.Read = false

	doc := toDoc(n)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Notification{}, err
	}
	return doc.domain(), nil
}

// ListByUser returns up to limit notifications addressed to userID, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID int64, limit int64) ([]domain.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"user": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.domain())
	}
	return out, nil
}
