package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/velora/commerce-api/internal/core/domain"
)

const collectionRoles = "roles"

// RoleStore persists roles and their permission sets in MongoDB.
type RoleStore struct {
	col *mongo.Collection
}

func NewRoleStore(db *mongo.Database) *RoleStore {
	return &RoleStore{col: db.Collection(collectionRoles)}
}

type roleDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	ParentID    string             `bson:"parent_id,omitempty"`
	Permissions []string           `bson:"permissions"`
}

func (r *RoleStore) FindByID(ctx context.Context, id string) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrRoleNotFound
	}

	var doc roleDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}

	perms := doc.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &domain.Role{
		ID:          doc.ID.Hex(),
		Name:        doc.Name,
		ParentID:    doc.ParentID,
		Permissions: perms,
	}, nil
}

// AddPermission attaches a permission with $addToSet, so re-adding an
// existing permission is a no-op rather than a duplicate.
func (r *RoleStore) AddPermission(ctx context.Context, roleID, permission string) error {
	return r.updatePermissions(ctx, roleID, bson.M{"$addToSet": bson.M{"permissions": permission}})
}

func (r *RoleStore) RemovePermission(ctx context.Context, roleID, permission string) error {
	return r.updatePermissions(ctx, roleID, bson.M{"$pull": bson.M{"permissions": permission}})
}

func (r *RoleStore) SetPermissions(ctx context.Context, roleID string, permissions []string) error {
	if permissions == nil {
		permissions = []string{}
	}
	return r.updatePermissions(ctx, roleID, bson.M{"$set": bson.M{"permissions": permissions}})
}

func (r *RoleStore) updatePermissions(ctx context.Context, roleID string, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(roleID)
	if err != nil {
		return domain.ErrRoleNotFound
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update role permissions: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}
