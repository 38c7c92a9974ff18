// Package txlog models the workspace transaction log and the views derived from it.
//
// # Transactions
//
// A Tx creates, updates, removes or mixes into one object. Txes defining the
// schema live in the model space (SpaceModel); ValidateModelTxes rejects a log
// containing anything else, before any store is touched.
//
// # Derived Views
//
// BuildModel replays a model log into two views:
//
//   - Hierarchy: classes and mixins with their ancestry and storage domain.
//     Folding is best effort: a tx that cannot be classified is recorded in
//     Model.ClassificationErrors and skipped.
//   - ModelDB: the current state of every model object. It is built from the
//     whole log at once and must be consistent; every update or removal of an
//     unknown object is reported and the build fails.
//
// Neither view is persisted; both are rebuilt from the log whenever needed.
//
// # Class Definitions
//
// A create tx of class ClassClass or ClassMixin defines a class. Recognized
// attributes:
//
//	extends  string          parent class (must already be defined)
//	domain   string          storage domain, inherited by descendants
//	indexes  []string|[][]   secondary index keys for the domain
package txlog
