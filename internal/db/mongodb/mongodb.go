package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/ukane-philemon/gradebook/internal/student"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// Collections
	studentCollection = "students"
	metaCollection    = "meta"

	// Keys
	dbIDKey     = "_id"
	positionKey = "position"

	// metaStudentsID is the id of the meta document written by every Save.
	metaStudentsID = "students"
)

// Check that *MongoDB implements student.Persister.
var _ student.Persister = (*MongoDB)(nil)

// MongoDB implements student.Persister.
type MongoDB struct {
	db                *mongo.Database
	studentCollection *mongo.Collection
	metaCollection    *mongo.Collection
	log               logrus.FieldLogger
}

// New connects to a mongo database and returns a new instance of *MongoDB.
func New(ctx context.Context, dbName string, connectionURL string, log logrus.FieldLogger) (*MongoDB, error) {
	if connectionURL == "" {
		return nil, errors.New("missing mongodb database connection URL")
	}

	if dbName == "" {
		return nil, errors.New("database name is required")
	}

	if log == nil {
		log = logrus.StandardLogger()
	}

	// Set server API version for the client.
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(connectionURL).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}

	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		return nil, fmt.Errorf("client.Ping error: %w", err)
	}

	log.Info("Database has been connected and pinged successfully...")

	db := client.Database(dbName)

	// Index the insertion position used to restore list order on Load.
	students := db.Collection(studentCollection)
	_, err = students.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{
			Key:   positionKey,
			Value: 1,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("studentCollection.Indexes().CreateOne error: %w", err)
	}

	return &MongoDB{
		db:                db,
		studentCollection: students,
		metaCollection:    db.Collection(metaCollection),
		log:               log,
	}, nil
}

// Load returns nil if Save has never been called on this database.
// Implements student.Persister.
func (mdb *MongoDB) Load(ctx context.Context) ([]*student.Student, error) {
	err := mdb.metaCollection.FindOne(ctx, bson.M{dbIDKey: metaStudentsID}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("metaCollection.FindOne error: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: positionKey, Value: 1}})
	cur, err := mdb.studentCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("studentCollection.Find error: %w", err)
	}

	var records []*dbStudentRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode students: %w", err)
	}

	students := make([]*student.Student, 0, len(records))
	for _, record := range records {
		students = append(students, record.Student())
	}

	return students, nil
}

// Save replaces the stored students with students inside a transaction.
// Implements student.Persister.
func (mdb *MongoDB) Save(ctx context.Context, students []*student.Student) error {
	saveStudentsFn := func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := mdb.studentCollection.DeleteMany(sessCtx, bson.M{}); err != nil {
			return nil, fmt.Errorf("studentCollection.DeleteMany error: %w", err)
		}

		if len(students) > 0 {
			docs := make([]interface{}, 0, len(students))
			for position, s := range students {
				docs = append(docs, newDBStudentRecord(s, position))
			}

			if _, err := mdb.studentCollection.InsertMany(sessCtx, docs); err != nil {
				return nil, fmt.Errorf("studentCollection.InsertMany error: %w", err)
			}
		}

		metaUpdate := bson.M{"$set": bson.M{"count": len(students)}}
		_, err := mdb.metaCollection.UpdateOne(sessCtx, bson.M{dbIDKey: metaStudentsID}, metaUpdate, options.Update().SetUpsert(true))
		if err != nil {
			return nil, fmt.Errorf("metaCollection.UpdateOne error: %w", err)
		}

		return nil, nil
	}

	_, err := mdb.withSession(ctx, saveStudentsFn)
	return err
}

// Shutdown attempts to shutdown the database.
func (mdb *MongoDB) Shutdown(ctx context.Context) error {
	client := mdb.db.Client()
	err := client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("client.Disconnect error: %w", err)
	}

	mdb.log.Info("Database has been shutdown successfully...")

	return nil
}

// withSession runs fn in a transaction.
func (mdb *MongoDB) withSession(ctx context.Context, fn func(mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	session, err := mdb.db.Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("Client().StartSession() error: %w", err)
	}
	defer session.EndSession(ctx)

	return session.WithTransaction(ctx, fn)
}
