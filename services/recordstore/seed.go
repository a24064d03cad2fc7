// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/scholar/pkg/records"
	"github.com/AleutianAI/scholar/pkg/validation"
)

// LoadSeed reads a list of student records from a YAML or JSON file.
//
// # Description
//
// The format follows the extension: ".json" is JSON, anything else is
// YAML. Each entry is a mapping whose "_id" is the 24-hex student id.
// Field order is preserved in both formats.
//
// # Outputs
//
//   - []*records.Record: The entries in file order.
//   - error: Read or parse failure, or an entry without a valid id.
func LoadSeed(path string) ([]*records.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var recs []*records.Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("parse seed file %s: %w", path, err)
		}
	default:
		recs, err = parseYAMLSeed(data)
		if err != nil {
			return nil, fmt.Errorf("parse seed file %s: %w", path, err)
		}
	}

	for i, rec := range recs {
		id, err := documentID(rec)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		if err := validation.ValidateStudentID(id); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
	}
	return recs, nil
}

// parseYAMLSeed walks the node tree so mapping order survives.
func parseYAMLSeed(data []byte) ([]*records.Record, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of records", root.Line)
	}

	recs := make([]*records.Record, 0, len(root.Content))
	for _, entry := range root.Content {
		if entry.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: expected a mapping", entry.Line)
		}
		rec := records.NewRecord()
		for i := 0; i+1 < len(entry.Content); i += 2 {
			var value any
			if err := entry.Content[i+1].Decode(&value); err != nil {
				return nil, fmt.Errorf("line %d: %w", entry.Content[i+1].Line, err)
			}
			rec.Set(entry.Content[i].Value, value)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// SeedStore upserts every record under its "_id".
func SeedStore(ctx context.Context, store Store, recs []*records.Record) error {
	for i, rec := range recs {
		id, err := documentID(rec)
		if err != nil {
			return fmt.Errorf("seed entry %d: %w", i, err)
		}
		if err := store.Put(ctx, id, rec); err != nil {
			return fmt.Errorf("seed %s: %w", id, err)
		}
	}
	return nil
}

// SeedFromFile loads path into store and returns the record count.
func SeedFromFile(ctx context.Context, store Store, path string) (int, error) {
	recs, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	if err := SeedStore(ctx, store, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}
