package repository

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type accountDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	Password     string             `bson:"password"`
	DisplayImage string             `bson:"displayImage"`
	CoverImage   string             `bson:"coverImage,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type MongoAccountRepository struct {
	kind       models.Kind
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoAccountRepository(db *mongo.Database, kind models.Kind, timeout time.Duration) *MongoAccountRepository {
	return &MongoAccountRepository{
		kind:       kind,
		collection: db.Collection(kind.Collection),
		timeout:    timeout,
	}
}

func (r *MongoAccountRepository) ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

func (r *MongoAccountRepository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return storeErr("create email index", err)
	}
	return nil
}

func (r *MongoAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	logger.Log.Debug("Поиск аккаунта по email (repo)", zap.String("kind", r.kind.Name), zap.String("email", email))
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, models.ErrInvalidIdentifier)
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var doc accountDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("find "+r.kind.Name, err)
	}
	return r.fromDoc(&doc), nil
}

func (r *MongoAccountRepository) Insert(ctx context.Context, acc *models.Account) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = nowMillis()
	}
	doc := r.toDoc(acc)
	res, err := r.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s: %w", r.kind.Name, acc.Email, models.ErrAlreadyExists)
	}
	if err != nil {
		return storeErr("insert "+r.kind.Name, err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		acc.ID = oid.Hex()
	}
	logger.Log.Info("Аккаунт создан (repo)", zap.String("kind", r.kind.Name), zap.String("id", acc.ID))
	return nil
}

func (r *MongoAccountRepository) FindAndUpdateByID(ctx context.Context, id string, upd models.AccountUpdate) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, models.ErrInvalidIdentifier)
	}
	return r.findAndUpdate(ctx, bson.M{"_id": oid}, upd)
}

func (r *MongoAccountRepository) FindAndUpdateByEmail(ctx context.Context, email string, upd models.AccountUpdate) (*models.Account, error) {
	return r.findAndUpdate(ctx, bson.M{"email": email}, upd)
}

func (r *MongoAccountRepository) findAndUpdate(ctx context.Context, filter bson.M, upd models.AccountUpdate) (*models.Account, error) {
	set := r.setDoc(upd)
	if len(set) == 0 {
		return r.findOne(ctx, filter)
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var doc accountDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("update "+r.kind.Name, err)
	}
	return r.fromDoc(&doc), nil
}

func (r *MongoAccountRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", id, models.ErrInvalidIdentifier)
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, storeErr("delete "+r.kind.Name, err)
	}
	return res.DeletedCount, nil
}

func (r *MongoAccountRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cur, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, storeErr("list "+r.kind.Name, err)
	}
	defer cur.Close(ctx)

	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("decode "+r.kind.Name, err)
	}

	accounts := make([]*models.Account, 0, len(docs))
	for i := range docs {
		accounts = append(accounts, r.fromDoc(&docs[i]))
	}
	return accounts, nil
}

func (r *MongoAccountRepository) setDoc(upd models.AccountUpdate) bson.M {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Password != nil {
		set["password"] = *upd.Password
	}
	if upd.DisplayImage != nil {
		set["displayImage"] = *upd.DisplayImage
	}
	if upd.CoverImage != nil && r.kind.HasCoverImage {
		set["coverImage"] = *upd.CoverImage
	}
	return set
}

func (r *MongoAccountRepository) toDoc(acc *models.Account) *accountDoc {
	doc := &accountDoc{
		Email:        acc.Email,
		Name:         acc.Name,
		Password:     acc.PasswordHash,
		DisplayImage: acc.DisplayImage,
		CreatedAt:    acc.CreatedAt,
	}
	if r.kind.HasCoverImage {
		doc.CoverImage = acc.CoverImage
	}
	return doc
}

func (r *MongoAccountRepository) fromDoc(doc *accountDoc) *models.Account {
	return &models.Account{
		ID:           doc.ID.Hex(),
		Kind:         r.kind,
		Email:        doc.Email,
		Name:         doc.Name,
		PasswordHash: doc.Password,
		DisplayImage: doc.DisplayImage,
		CoverImage:   doc.CoverImage,
		CreatedAt:    doc.CreatedAt,
	}
}
