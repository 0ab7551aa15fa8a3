package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/internal/catalog"
	"storefront-backend/internal/models"
)

type productDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	models.Product `bson:",inline"`
}

type Products struct {
	coll *mongo.Collection
}

func NewProducts(db *mongo.Database) *Products {
	return &Products{coll: db.Collection(ProductsCollection)}
}

// Filter translates a catalog query into a mongo filter document.
func Filter(q catalog.Query) bson.M {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Subcategory != "" {
		filter["subcategory"] = q.Subcategory
	}
	price := bson.M{}
	if q.MinPrice != nil {
		price["$gte"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		price["$lte"] = *q.MaxPrice
	}
	if len(price) > 0 {
		filter["effectivePrice"] = price
	}
	if q.Featured != nil {
		filter["isFeatured"] = *q.Featured
	}
	if q.ActiveOnly {
		filter["isActive"] = true
	}
	if len(q.Keywords) > 0 {
		filter["searchKeywords"] = bson.M{"$in": q.Keywords}
	}
	return filter
}

// Sort orders by the requested field with _id as tie breaker.
func Sort(q catalog.Query) bson.D {
	field := q.SortField
	if field == "" {
		field = catalog.FieldCreatedAt
	}
	dir := 1
	if q.Desc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

func (r *Products) List(ctx context.Context, q catalog.Query) ([]models.Product, error) {
	opts := options.Find().SetSort(Sort(q))
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := r.coll.Find(ctx, Filter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cur.Close(ctx)

	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	out := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (r *Products) Get(ctx context.Context, id string) (models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Product{}, catalog.ErrNotFound
	}
	var d productDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("find product: %w", err)
	}
	return d.model(), nil
}

func (r *Products) Create(ctx context.Context, p models.Product) (models.Product, error) {
	d := productDoc{ID: primitive.NewObjectID(), Product: p}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return models.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return d.model(), nil
}

func (r *Products) Update(ctx context.Context, p models.Product) error {
	oid, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return catalog.ErrNotFound
	}
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, productDoc{ID: oid, Product: p})
	if err != nil {
		return fmt.Errorf("replace product: %w", err)
	}
	if res.MatchedCount == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *Products) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (d productDoc) model() models.Product {
	p := d.Product
	p.ID = d.ID.Hex()
	return p
}
