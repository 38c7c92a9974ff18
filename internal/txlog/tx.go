// ABOUTME: Transaction records of the workspace log and their reserved identifiers
// ABOUTME: Converts between Tx and raw store documents and validates model-space txes

package txlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-migrate/internal/store"
)

// ErrInvalidObjectSpace is returned when a model tx does not target the model space
var ErrInvalidObjectSpace = errors.New("model txes must target only the model space")

// Reserved spaces
const (
	SpaceModel         = "core:space:Model"
	SpaceTx            = "core:space:Tx"
	SpaceDerivedTx     = "core:space:DerivedTx"
	SpaceConfiguration = "core:space:Configuration"
)

// AccountSystem authors all system-generated scaffolding
const AccountSystem = "core:account:System"

// Reserved classes
const (
	ClassDoc            = "core:class:Doc"
	ClassTx             = "core:class:Tx"
	ClassClass          = "core:class:Class"
	ClassMixin          = "core:class:Mixin"
	ClassMigrationState = "core:class:MigrationState"
)

// TxKind says what a tx does to its object
type TxKind string

const (
	TxCreate TxKind = "create"
	TxUpdate TxKind = "update"
	TxRemove TxKind = "remove"
	TxMixin  TxKind = "mixin"
)

// Tx is an immutable entry of the transaction log
type Tx struct {
	ID          string         `json:"_id"`
	Kind        TxKind         `json:"kind"`
	ObjectID    string         `json:"objectId"`
	ObjectClass string         `json:"objectClass"`
	ObjectSpace string         `json:"objectSpace"`
	ModifiedBy  string         `json:"modifiedBy"`
	ModifiedOn  int64          `json:"modifiedOn"` // unix milliseconds
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// NewTx builds a tx with a fresh ID, authored by the system account
func NewTx(kind TxKind, objectClass, objectID string, attrs map[string]any) Tx {
	return Tx{
		ID:          uuid.NewString(),
		Kind:        kind,
		ObjectID:    objectID,
		ObjectClass: objectClass,
		ObjectSpace: SpaceModel,
		ModifiedBy:  AccountSystem,
		ModifiedOn:  time.Now().UnixMilli(),
		Attributes:  attrs,
	}
}

// ToDoc converts a tx to the row stored in the tx or model domain
func (tx Tx) ToDoc() store.Doc {
	attrs := map[string]any{
		"kind":        string(tx.Kind),
		"objectId":    tx.ObjectID,
		"objectClass": tx.ObjectClass,
		"objectSpace": tx.ObjectSpace,
	}
	if len(tx.Attributes) > 0 {
		attrs["attributes"] = tx.Attributes
	}
	return store.Doc{
		ID:         tx.ID,
		Class:      ClassTx,
		Space:      SpaceTx,
		ModifiedBy: tx.ModifiedBy,
		ModifiedOn: time.UnixMilli(tx.ModifiedOn).UTC(),
		Attributes: attrs,
	}
}

// FromDoc converts a stored row back into a tx
func FromDoc(doc store.Doc) Tx {
	tx := Tx{
		ID:          doc.ID,
		Kind:        TxKind(doc.String("kind")),
		ObjectID:    doc.String("objectId"),
		ObjectClass: doc.String("objectClass"),
		ObjectSpace: doc.String("objectSpace"),
		ModifiedBy:  doc.ModifiedBy,
		ModifiedOn:  doc.ModifiedOn.UnixMilli(),
	}
	if attrs, ok := doc.Attributes["attributes"].(map[string]any); ok {
		tx.Attributes = attrs
	}
	return tx
}

// ToDocs converts a slice of txes
func ToDocs(txes []Tx) []store.Doc {
	docs := make([]store.Doc, len(txes))
	for i, tx := range txes {
		docs[i] = tx.ToDoc()
	}
	return docs
}

// ValidateModelTxes rejects the log if any tx targets a space other than the model space.
// It must run before anything is written.
func ValidateModelTxes(txes []Tx) error {
	for _, tx := range txes {
		if tx.ObjectSpace != SpaceModel {
			return fmt.Errorf("%w: tx %s targets %q", ErrInvalidObjectSpace, tx.ID, tx.ObjectSpace)
		}
	}
	return nil
}

// ReadTxes decodes a JSON array of txes
func ReadTxes(r io.Reader) ([]Tx, error) {
	var txes []Tx
	if err := json.NewDecoder(r).Decode(&txes); err != nil {
		return nil, fmt.Errorf("decoding txes: %w", err)
	}
	return txes, nil
}

// DefineClass returns the model tx defining a class
func DefineClass(id, extends string, domain store.Domain) Tx {
	attrs := map[string]any{}
	if extends != "" {
		attrs["extends"] = extends
	}
	if domain != "" {
		attrs["domain"] = string(domain)
	}
	return NewTx(TxCreate, ClassClass, id, attrs)
}

// DefineMixin returns the model tx defining a mixin of a class
func DefineMixin(id, extends string) Tx {
	return NewTx(TxCreate, ClassMixin, id, map[string]any{"extends": extends})
}
