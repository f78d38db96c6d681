// Package sqlstore implements the document store on top of PostgreSQL and
// MySQL. Each collection is a table with an id primary key and a JSON fields
// column. Transactions run at SERIALIZABLE isolation; failures from lost
// races are surfaced as transient errors so callers can retry.
package sqlstore

import (
	"encoding/json"
	"regexp"

	"github.com/memorylib/integrator/internal/docstore"
	apperrors "github.com/memorylib/integrator/internal/errors"
)

// collectionNameRE restricts collection names to plain SQL identifiers.
// Collection names are interpolated into queries, never user input.
var collectionNameRE = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// tableName validates a collection name for use as a SQL table name.
func tableName(col docstore.Collection) (string, error) {
	name := string(col)
	if !collectionNameRE.MatchString(name) {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "invalid collection name: "+name)
	}
	return name, nil
}

// marshalFields encodes fields as a JSON string for storage.
func marshalFields(fields docstore.Fields) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to marshal document fields")
	}
	return string(raw), nil
}

// unmarshalFields decodes a stored JSON document body.
func unmarshalFields(raw []byte) (docstore.Fields, error) {
	var fields docstore.Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal document fields")
	}
	return fields, nil
}
