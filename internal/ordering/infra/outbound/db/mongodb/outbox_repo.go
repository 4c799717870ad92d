package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OutboxRepoMongoDB es el store de outbox sobre Mongo, para despliegues
// donde el bus y el relayer corren separados del servicio de pedidos.
// OJO: sin transacción compartida con la base SQL de los agregados no hay
// atomicidad escritura-negocio/outbox; úsese solo con réplica set y el
// servicio escribiendo ambos en la misma sesión.
type OutboxRepoMongoDB struct {
	outboxColl *mongo.Collection
}

func NewOutboxRepoMongoDB(client *mongo.Client, dbName string) *OutboxRepoMongoDB {
	outboxColl := client.Database(dbName).Collection("outbox")
	return &OutboxRepoMongoDB{outboxColl: outboxColl}
}

// mongoOutboxEntry es un helper para mapear los documentos de la base de datos a un struct.
type mongoOutboxEntry struct {
	EventID       uuid.UUID `bson:"_id"`
	EventType     string    `bson:"eventType"`
	Content       string    `bson:"content"`
	State         string    `bson:"state"`
	TimesSent     int       `bson:"timesSent"`
	CreationTime  time.Time `bson:"creationTime"`
	TransactionID uuid.UUID `bson:"transactionId"`
}

func toMongoOutboxEntry(entry sharedDomain.OutboxEntry) mongoOutboxEntry {
	return mongoOutboxEntry{
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		Content:       string(entry.Content),
		State:         string(entry.State),
		TimesSent:     entry.TimesSent,
		CreationTime:  entry.CreationTime,
		TransactionID: entry.TransactionID,
	}
}

func fromMongoOutboxEntry(mo *mongoOutboxEntry) sharedDomain.OutboxEntry {
	return sharedDomain.OutboxEntry{
		EventID:       mo.EventID,
		EventType:     mo.EventType,
		Content:       json.RawMessage(mo.Content),
		State:         sharedDomain.OutboxState(mo.State),
		TimesSent:     mo.TimesSent,
		CreationTime:  mo.CreationTime,
		TransactionID: mo.TransactionID,
	}
}

func (r *OutboxRepoMongoDB) SaveEvent(ctx context.Context, entry sharedDomain.OutboxEntry) error {
	if _, err := r.outboxColl.InsertOne(ctx, toMongoOutboxEntry(entry)); err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}
	return nil
}

func (r *OutboxRepoMongoDB) MarkInProgress(ctx context.Context, eventID uuid.UUID) error {
	update := bson.M{
		"$set": bson.M{"state": string(sharedDomain.OutboxInProgress)},
		"$inc": bson.M{"timesSent": 1},
	}
	return r.updateState(ctx, eventID, update)
}

func (r *OutboxRepoMongoDB) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	return r.updateState(ctx, eventID, bson.M{"$set": bson.M{"state": string(sharedDomain.OutboxPublished)}})
}

func (r *OutboxRepoMongoDB) MarkFailed(ctx context.Context, eventID uuid.UUID) error {
	return r.updateState(ctx, eventID, bson.M{"$set": bson.M{"state": string(sharedDomain.OutboxPublishedFailed)}})
}

func (r *OutboxRepoMongoDB) updateState(ctx context.Context, eventID uuid.UUID, update bson.M) error {
	res, err := r.outboxColl.UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox entry not found: %s", eventID)
	}
	return nil
}

func (r *OutboxRepoMongoDB) RetrievePendingForTransaction(ctx context.Context, transactionID uuid.UUID) ([]sharedDomain.OutboxEntry, error) {
	filter := bson.M{
		"transactionId": transactionID,
		"state":         string(sharedDomain.OutboxNotPublished),
	}
	opts := options.Find().SetSort(bson.D{{Key: "creationTime", Value: 1}})
	return r.find(ctx, filter, opts)
}

// ListUnpublishedBefore alimenta al relayer, igual que en los adapters SQL.
func (r *OutboxRepoMongoDB) ListUnpublishedBefore(ctx context.Context, olderThan time.Time, limit int) ([]sharedDomain.OutboxEntry, error) {
	filter := bson.M{
		"state":        string(sharedDomain.OutboxNotPublished),
		"creationTime": bson.M{"$lt": olderThan},
	}
	opts := options.Find().SetSort(bson.D{{Key: "creationTime", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *OutboxRepoMongoDB) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]sharedDomain.OutboxEntry, error) {
	cursor, err := r.outboxColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []sharedDomain.OutboxEntry
	for cursor.Next(ctx) {
		var mo mongoOutboxEntry
		if err := cursor.Decode(&mo); err != nil {
			return nil, err
		}
		entries = append(entries, fromMongoOutboxEntry(&mo))
	}
	return entries, cursor.Err()
}

// Verificación en tiempo de compilación.
var _ sharedDomain.OutboxStore = (*OutboxRepoMongoDB)(nil)
