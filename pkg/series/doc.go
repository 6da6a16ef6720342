// Package series builds typed, column-oriented Arrow arrays from a stream of
// semi-structured values whose shape is not known in advance.
//
// A producer writes one value at a time (null, scalar, record or list) and the
// Builder keeps a tree of typed column builders in sync with it. The first
// non-null value at a slot fixes its type; a later value of a different type
// promotes the slot into a tagged union instead of failing. Fields that a row
// does not mention are back-filled with nulls so that sibling columns always
// have the same length.
//
// # Basic Usage
//
//	b := series.New()
//	b.Record(func(r *series.RecordGuard) {
//	    r.Field("host").Atom("db-1")
//	    r.Field("latency").Atom(12.5)
//	})
//	b.Record(func(r *series.RecordGuard) {
//	    r.Field("host").Atom("db-2")
//	    r.Field("tags").List(func(l *series.ListGuard) {
//	        l.Atom("primary")
//	    })
//	})
//	batch := b.FinishAsBatch()
//	defer batch.Release()
//
// # Promotion
//
// Each write asks for "a builder of kind K" at a slot and is resolved by one
// decision table:
//
//	Unknown            -> replaced by a new K builder, back-filled with nulls
//	already K          -> reused
//	union              -> existing K variant activated, or a new one appended
//	other concrete K2  -> replaced by a union of (K2, K)
//
// Union variants keep their index for the lifetime of the builder. In sparse
// mode (the default) every variant is padded with a null in rows where it is
// not active; in dense mode rows carry a value offset into the active variant.
//
// # Errors
//
// Conflicting types are not errors. Misuse of the API (writing a field twice
// in one row, writing through a guard after its scope ended, passing an
// unsupported Go type to Atom, reusing a finished Builder) panics with an
// *errors.Error of type internal.
//
// A Builder is not safe for concurrent use. The arrays it produces are
// immutable and may be shared freely.
package series
