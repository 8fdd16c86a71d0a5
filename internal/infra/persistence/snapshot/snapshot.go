// Package snapshot encodes the custody document for the storage backends,
// either as one JSON blob or as one JSON payload per collection bucket.
package snapshot

import (
	"encoding/json"
	"fmt"

	"custodycore/pkg/domain"
)

// Buckets lists the per-collection rows written by the SQL backends.
var Buckets = []string{"employees", "transactions", "inventory", "links", "movements"}

// Marshal serialises the whole document.
func Marshal(doc domain.Document) ([]byte, error) {
	doc.Normalize()
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a whole-document payload. An empty payload reports
// domain.ErrNoDocument.
func Unmarshal(data []byte) (domain.Document, error) {
	if len(data) == 0 {
		return domain.Document{}, domain.ErrNoDocument
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

// EncodeBuckets splits the document into one payload per bucket.
func EncodeBuckets(doc domain.Document) (map[string][]byte, error) {
	doc.Normalize()
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case "employees":
			data, err = json.Marshal(doc.Employees)
		case "transactions":
			data, err = json.Marshal(doc.Transactions)
		case "inventory":
			data, err = json.Marshal(doc.Inventory)
		case "links":
			data, err = json.Marshal(doc.Links)
		case "movements":
			data, err = json.Marshal(doc.Movements)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBuckets rebuilds a document from bucket payloads. No rows at all
// reports domain.ErrNoDocument; unknown buckets are ignored.
func DecodeBuckets(rows map[string][]byte) (domain.Document, error) {
	if len(rows) == 0 {
		return domain.Document{}, domain.ErrNoDocument
	}
	var doc domain.Document
	targets := map[string]any{
		"employees":    &doc.Employees,
		"transactions": &doc.Transactions,
		"inventory":    &doc.Inventory,
		"links":        &doc.Links,
		"movements":    &doc.Movements,
	}
	for bucket, payload := range rows {
		target, ok := targets[bucket]
		if !ok || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return domain.Document{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	doc.Normalize()
	return doc, nil
}
