package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autoassist/car-buying-assistant/internal/models"
)

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo("mongodb://bad-host:1/?connectTimeoutMS=200&serverSelectionTimeoutMS=200")
	if err == nil {
		t.Error("expected error for unreachable URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestPrincipalFilter(t *testing.T) {
	filter, ok := principalFilter(models.UserPrincipal("user-1"))
	if !ok {
		t.Fatal("expected a filter for a user principal")
	}
	if filter["user_id"] != "user-1" {
		t.Errorf("expected user_id filter, got %v", filter)
	}

	filter, ok = principalFilter(models.GuestPrincipal("session-1"))
	if !ok {
		t.Fatal("expected a filter for a guest with a session")
	}
	if filter["session_id"] != "session-1" {
		t.Errorf("expected session_id filter, got %v", filter)
	}

	if _, ok := principalFilter(models.GuestPrincipal("")); ok {
		t.Error("anonymous guest should not produce a filter")
	}
}

// integrationCollection connects to a local MongoDB or skips the test.
func integrationCollection(t *testing.T) *MongoEvaluationCollection {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("mongo unreachable: %v, skipping integration test", err)
	}

	name := fmt.Sprintf("evaluations_test_%d", time.Now().UnixNano())
	coll := client.Database("car_assistant_test").Collection(name)
	t.Cleanup(func() {
		_ = coll.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return &MongoEvaluationCollection{Collection: coll}
}

func testEvaluation(sessionID string) *models.Evaluation {
	return &models.Evaluation{
		SessionID: sessionID,
		Car: models.CarDetails{
			Year:    2020,
			Make:    "Honda",
			Model:   "Civic",
			Mileage: 30000,
			Price:   18000,
		},
		Status:   models.StatusDraft,
		Progress: 20,
	}
}

func TestEvaluationCRUD_Integration(t *testing.T) {
	coll := integrationCollection(t)
	ctx := context.Background()

	eval := testEvaluation("session-1")
	if err := coll.Insert(ctx, eval); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if eval.ID.IsZero() {
		t.Fatal("insert should assign an id")
	}
	if eval.CreatedAt.IsZero() {
		t.Error("insert should set created_at")
	}

	found, err := coll.FindByID(ctx, eval.ID.Hex())
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found.Car.Make != "Honda" || found.SessionID != "session-1" {
		t.Errorf("unexpected record: %+v", found)
	}

	found.Car.Price = 17000
	found.Status = models.StatusInProgress
	if err := coll.Update(ctx, found.ID.Hex(), found); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	updated, err := coll.FindByID(ctx, eval.ID.Hex())
	if err != nil {
		t.Fatalf("find after update failed: %v", err)
	}
	if updated.Car.Price != 17000 || updated.Status != models.StatusInProgress {
		t.Errorf("update not persisted: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("update should bump updated_at")
	}

	if err := coll.Delete(ctx, eval.ID.Hex()); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := coll.FindByID(ctx, eval.ID.Hex()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestEvaluationNotFound_Integration(t *testing.T) {
	coll := integrationCollection(t)
	ctx := context.Background()

	if _, err := coll.FindByID(ctx, "not-a-hex-id"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for bad id, got %v", err)
	}
	if err := coll.Update(ctx, "ffffffffffffffffffffffff", testEvaluation("s")); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing update, got %v", err)
	}
	if err := coll.Delete(ctx, "ffffffffffffffffffffffff"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for missing delete, got %v", err)
	}
}

func TestFindByPrincipal_Integration(t *testing.T) {
	coll := integrationCollection(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := coll.Insert(ctx, testEvaluation("session-1")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := coll.Insert(ctx, testEvaluation("session-2")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	evals, total, err := coll.FindByPrincipal(ctx, models.GuestPrincipal("session-1"), 1, 2)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(evals) != 2 {
		t.Fatalf("expected 2 records on page 1, got %d", len(evals))
	}
	if evals[0].CreatedAt.Before(evals[1].CreatedAt) {
		t.Error("records should be sorted newest first")
	}

	evals, _, err = coll.FindByPrincipal(ctx, models.GuestPrincipal("session-1"), 2, 2)
	if err != nil {
		t.Fatalf("find page 2 failed: %v", err)
	}
	if len(evals) != 1 {
		t.Errorf("expected 1 record on page 2, got %d", len(evals))
	}

	evals, total, err = coll.FindByPrincipal(ctx, models.GuestPrincipal(""), 1, 10)
	if err != nil {
		t.Fatalf("anonymous find failed: %v", err)
	}
	if total != 0 || len(evals) != 0 {
		t.Errorf("anonymous guest should see nothing, got %d/%d", len(evals), total)
	}
}
