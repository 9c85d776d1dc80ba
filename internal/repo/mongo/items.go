package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/stockroom/internal/domain/item"
	"github.com/geocoder89/stockroom/internal/repo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const itemsCollection = "items"

type itemDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ItemName    string             `bson:"itemName"`
	Quantity    int                `bson:"quantity"`
	Description string             `bson:"description,omitempty"`
	Category    string             `bson:"category"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d itemDoc) toDomain() item.Item {
	return item.Item{
		ID:          d.ID.Hex(),
		ItemName:    d.ItemName,
		Quantity:    d.Quantity,
		Description: d.Description,
		Category:    d.Category,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type ItemsRepo struct {
	coll *mongo.Collection
	obs  repo.Observer
}

func NewItemsRepo(db *mongo.Database, obs repo.Observer) *ItemsRepo {
	return &ItemsRepo{coll: db.Collection(itemsCollection), obs: obs}
}

func (r *ItemsRepo) Create(ctx context.Context, in item.Input) (item.Item, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)

	doc := itemDoc{
		ID:          primitive.NewObjectID(),
		ItemName:    in.ItemName,
		Quantity:    in.Qty(),
		Description: in.Description,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := repo.Observe(r.obs, "items.create", func() error {
		_, err := r.coll.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return item.Item{}, err
	}

	return doc.toDomain(), nil
}

func (r *ItemsRepo) List(ctx context.Context) ([]item.Item, error) {
	var docs []itemDoc

	err := repo.Observe(r.obs, "items.list", func() error {
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})

		cur, err := r.coll.Find(ctx, bson.D{}, opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, err
	}

	out := make([]item.Item, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *ItemsRepo) GetByID(ctx context.Context, id string) (item.Item, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return item.Item{}, repo.ErrNotFound
	}

	var doc itemDoc

	err = repo.Observe(r.obs, "items.get_by_id", func() error {
		return r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})

	if err != nil {
		return item.Item{}, mapNoDocuments(err)
	}
	return doc.toDomain(), nil
}

func (r *ItemsRepo) Update(ctx context.Context, id string, in item.Input) (item.Item, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return item.Item{}, repo.ErrNotFound
	}

	set := bson.M{
		"itemName":  in.ItemName,
		"quantity":  in.Qty(),
		"category":  in.Category,
		"updatedAt": time.Now().UTC().Truncate(time.Millisecond),
	}
	update := bson.M{"$set": set}
	if in.Description == "" {
		update["$unset"] = bson.M{"description": ""}
	} else {
		set["description"] = in.Description
	}

	var doc itemDoc

	err = repo.Observe(r.obs, "items.update", func() error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	})

	if err != nil {
		return item.Item{}, mapNoDocuments(err)
	}
	return doc.toDomain(), nil
}

func (r *ItemsRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repo.ErrNotFound
	}

	var deleted int64

	err = repo.Observe(r.obs, "items.delete", func() error {
		res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})

	if err != nil {
		return err
	}
	if deleted == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func mapNoDocuments(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repo.ErrNotFound
	}
	return err
}
