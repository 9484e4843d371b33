package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autoassist/car-buying-assistant/internal/models"
)

// EvaluationCollection defines the interface for evaluation database operations
type EvaluationCollection interface {
	Insert(ctx context.Context, eval *models.Evaluation) error
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	FindByPrincipal(ctx context.Context, p models.Principal, page, limit int) ([]models.Evaluation, int64, error)
	Update(ctx context.Context, id string, eval *models.Evaluation) error
	Delete(ctx context.Context, id string) error
}

// MongoEvaluationCollection implements EvaluationCollection for MongoDB
type MongoEvaluationCollection struct {
	Collection *mongo.Collection
}

// Insert inserts a new evaluation into the database
func (c *MongoEvaluationCollection) Insert(ctx context.Context, eval *models.Evaluation) error {
	if eval.ID.IsZero() {
		eval.ID = primitive.NewObjectID()
	}
	eval.CreatedAt = time.Now()
	eval.UpdatedAt = eval.CreatedAt

	_, err := c.Collection.InsertOne(ctx, eval)
	return err
}

// FindByID finds an evaluation by its id. An unparseable id is treated
// the same as a missing record.
func (c *MongoEvaluationCollection) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var eval models.Evaluation
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&eval)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &eval, nil
}

// principalFilter returns the scope filter for a principal, or false
// when the principal can own no records (anonymous guest).
func principalFilter(p models.Principal) (bson.M, bool) {
	if p.IsUser() {
		return bson.M{"user_id": p.UserID}, true
	}
	if p.SessionID == "" {
		return nil, false
	}
	return bson.M{"session_id": p.SessionID}, true
}

// FindByPrincipal returns one page of the principal's evaluations,
// newest first, together with the total count. An anonymous guest gets
// an empty page rather than an error.
func (c *MongoEvaluationCollection) FindByPrincipal(ctx context.Context, p models.Principal, page, limit int) ([]models.Evaluation, int64, error) {
	filter, ok := principalFilter(p)
	if !ok {
		return []models.Evaluation{}, 0, nil
	}

	total, err := c.Collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	evals := []models.Evaluation{}
	if err := cursor.All(ctx, &evals); err != nil {
		return nil, 0, err
	}

	return evals, total, nil
}

// Update replaces an evaluation by its id and bumps updated_at. The
// caller is responsible for never changing id, owner, session or
// creation time on the passed record.
func (c *MongoEvaluationCollection) Update(ctx context.Context, id string, eval *models.Evaluation) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	eval.ID = objectID
	eval.UpdatedAt = time.Now()

	result, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": objectID}, eval)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes an evaluation by its id
func (c *MongoEvaluationCollection) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
