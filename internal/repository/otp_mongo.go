package repository

import (
	"accountsvc/internal/models"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const otpCollection = "otps"

type otpDoc struct {
	Kind      string    `bson:"kind"`
	Email     string    `bson:"email"`
	CodeHash  string    `bson:"codeHash"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
	PurgeAt   time.Time `bson:"purgeAt"`
}

// MongoOTPStore хранит коды в одной коллекции с уникальным ключом (kind, email).
// TTL-индекс по purgeAt только подчищает мусор: истечение проверяет сервис.
type MongoOTPStore struct {
	collection *mongo.Collection
	retention  time.Duration
	timeout    time.Duration
}

func NewMongoOTPStore(db *mongo.Database, retention, timeout time.Duration) *MongoOTPStore {
	return &MongoOTPStore{
		collection: db.Collection(otpCollection),
		retention:  retention,
		timeout:    timeout,
	}
}

func (s *MongoOTPStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("kind_email_unique"),
		},
		{
			Keys:    bson.D{{Key: "purgeAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("purge_ttl"),
		},
	})
	if err != nil {
		return storeErr("create otp indexes", err)
	}
	return nil
}

func (s *MongoOTPStore) Save(ctx context.Context, code *models.OneTimeCode) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	doc := otpDoc{
		Kind:      code.Kind,
		Email:     code.Email,
		CodeHash:  code.CodeHash,
		ExpiresAt: code.ExpiresAt,
		CreatedAt: code.CreatedAt,
		PurgeAt:   code.ExpiresAt.Add(s.retention),
	}
	filter := bson.M{"kind": code.Kind, "email": code.Email}
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, filter, doc, opts)
	// параллельный upsert той же пары проиграл вставку: документ уже есть, повтор его заменит
	if mongo.IsDuplicateKeyError(err) {
		_, err = s.collection.ReplaceOne(ctx, filter, doc, opts)
	}
	if err != nil {
		return storeErr("save otp", err)
	}
	return nil
}

func (s *MongoOTPStore) Get(ctx context.Context, kind, email string) (*models.OneTimeCode, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var doc otpDoc
	err := s.collection.FindOne(ctx, bson.M{"kind": kind, "email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get otp", err)
	}
	return &models.OneTimeCode{
		Kind:      doc.Kind,
		Email:     doc.Email,
		CodeHash:  doc.CodeHash,
		ExpiresAt: doc.ExpiresAt,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *MongoOTPStore) DeleteIfCode(ctx context.Context, kind, email, codeHash string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"kind": kind, "email": email, "codeHash": codeHash})
	if err != nil {
		return false, storeErr("delete otp", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoOTPStore) Delete(ctx context.Context, kind, email string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.collection.DeleteOne(ctx, bson.M{"kind": kind, "email": email})
	if err != nil {
		return storeErr("delete otp", err)
	}
	return nil
}
