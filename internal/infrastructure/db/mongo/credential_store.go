package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/velora/commerce-api/internal/core/domain"
	"github.com/velora/commerce-api/internal/core/ports"
)

const collectionAccounts = "accounts"

// CredentialStore persists account records in MongoDB. It is the source of
// truth the permission cache self-heals from.
type CredentialStore struct {
	col *mongo.Collection
}

func NewCredentialStore(db *mongo.Database) *CredentialStore {
	return &CredentialStore{col: db.Collection(collectionAccounts)}
}

type accountDoc struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	Email               string             `bson:"email"`
	PasswordHash        string             `bson:"password_hash"`
	Type                string             `bson:"type"`
	RoleID              string             `bson:"role_id,omitempty"`
	Active              bool               `bson:"active"`
	LastLoginAt         int64              `bson:"last_login_at,omitempty"`
	CreatedAt           int64              `bson:"created_at"`
	UpdatedAt           int64              `bson:"updated_at"`
	ResetTokenHash      string             `bson:"reset_token_hash,omitempty"`
	ResetTokenExpiresAt int64              `bson:"reset_token_expires_at,omitempty"`
}

func (r *CredentialStore) FindByEmail(ctx context.Context, email string, opts ports.FindOpts) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"email": email}
	if !opts.IncludeInactive {
		filter["active"] = true
	}

	var doc accountDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *CredentialStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}

	var doc accountDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *CredentialStore) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := accountDoc{
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		Type:         account.Type,
		RoleID:       account.RoleID,
		Active:       account.Active,
		CreatedAt:    account.CreatedAt.Unix(),
		UpdatedAt:    account.UpdatedAt.Unix(),
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	created := *account
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

// Update applies a partial patch. Nil patch fields are untouched; a pointer
// to the zero value clears the stored field (used to consume reset tokens).
func (r *CredentialStore) Update(ctx context.Context, id string, patch ports.AccountPatch) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrAccountNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC().Unix()}
	unset := bson.M{}
	if patch.PasswordHash != nil {
		set["password_hash"] = *patch.PasswordHash
	}
	if patch.LastLoginAt != nil {
		set["last_login_at"] = patch.LastLoginAt.Unix()
	}
	if patch.ResetTokenHash != nil {
		if *patch.ResetTokenHash == "" {
			unset["reset_token_hash"] = ""
		} else {
			set["reset_token_hash"] = *patch.ResetTokenHash
		}
	}
	if patch.ResetTokenExpiresAt != nil {
		if patch.ResetTokenExpiresAt.IsZero() {
			unset["reset_token_expires_at"] = ""
		} else {
			set["reset_token_expires_at"] = patch.ResetTokenExpiresAt.Unix()
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// FindWithActiveResetTokens returns accounts holding an unexpired reset
// token. The expiry filter bounds the set the reset flow has to scan.
func (r *CredentialStore) FindWithActiveResetTokens(ctx context.Context, now time.Time) ([]*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"reset_token_hash":       bson.M{"$exists": true, "$ne": ""},
		"reset_token_expires_at": bson.M{"$gt": now.Unix()},
		"active":                 true,
	}

	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find reset candidates: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.Account
	for cur.Next(ctx) {
		var doc accountDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode reset candidate: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

// EnsureIndexes creates the unique email index and the reset-token scan index.
func (r *CredentialStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "reset_token_expires_at", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (d *accountDoc) toDomain() *domain.Account {
	return &domain.Account{
		ID:                  d.ID.Hex(),
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		Type:                d.Type,
		RoleID:              d.RoleID,
		Active:              d.Active,
		LastLoginAt:         unixToTime(d.LastLoginAt),
		CreatedAt:           unixToTime(d.CreatedAt),
		UpdatedAt:           unixToTime(d.UpdatedAt),
		ResetTokenHash:      d.ResetTokenHash,
		ResetTokenExpiresAt: unixToTime(d.ResetTokenExpiresAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
