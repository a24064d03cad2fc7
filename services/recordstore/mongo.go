// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AleutianAI/scholar/pkg/records"
)

const mongoConnectTimeout = 10 * time.Second

// MongoConfig locates the student collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore reads students from a MongoDB collection keyed by ObjectID.
//
// # Limitations
//
//   - Ids that are not valid ObjectID hex are reported as not found.
//   - Listings follow the collection's natural order.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongoStore connects and pings the server.
func OpenMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Get implements Store.
func (m *MongoStore) Get(ctx context.Context, id string, fields []string) (*records.Record, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	opts := options.FindOne()
	if len(fields) > 0 {
		opts.SetProjection(mongoProjection(fields, false))
	}
	var doc bson.D
	err = m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find student %s: %w", id, err)
	}
	return project(fromBSON(doc), id, fields, false), nil
}

// List implements Store.
func (m *MongoStore) List(ctx context.Context, limit int, fields []string) ([]*records.Record, error) {
	opts := options.Find()
	if len(fields) > 0 {
		opts.SetProjection(mongoProjection(fields, true))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]*records.Record, 0)
	for cur.Next(ctx) {
		var doc bson.D
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode student: %w", err)
		}
		rec := fromBSON(doc)
		out = append(out, project(rec, rec.ID(), fields, true))
	}
	return out, cur.Err()
}

// Put implements Store. The record is upserted under its ObjectID.
func (m *MongoStore) Put(ctx context.Context, id string, rec *records.Record) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("student id %q is not an ObjectID: %w", id, err)
	}
	doc := bson.D{{Key: "_id", Value: oid}}
	rec.Each(func(name string, value any) bool {
		if name != records.IDField {
			doc = append(doc, bson.E{Key: name, Value: value})
		}
		return true
	})
	_, err = m.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert student %s: %w", id, err)
	}
	return nil
}

// Close implements Store.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func mongoProjection(fields []string, withID bool) bson.D {
	proj := make(bson.D, 0, len(fields)+1)
	if withID {
		proj = append(proj, bson.E{Key: "_id", Value: 1})
	} else {
		proj = append(proj, bson.E{Key: "_id", Value: 0})
	}
	for _, f := range fields {
		proj = append(proj, bson.E{Key: f, Value: 1})
	}
	return proj
}

// fromBSON converts a decoded document, rendering ObjectIDs as hex.
func fromBSON(doc bson.D) *records.Record {
	rec := records.NewRecord()
	for _, e := range doc {
		if oid, ok := e.Value.(primitive.ObjectID); ok {
			rec.Set(e.Key, oid.Hex())
			continue
		}
		rec.Set(e.Key, e.Value)
	}
	return rec
}
