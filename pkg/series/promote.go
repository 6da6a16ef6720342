package series

import (
	"sort"

	"go.uber.org/zap"
)

// promote resolves a request for a builder of kind k at slot. It is the only
// place where the type of a slot changes:
//
//	Unknown            -> new k builder back-filled to the Unknown length
//	already k          -> unchanged
//	union              -> variant k activated, appended first if missing
//	other concrete     -> replaced by a union of (old, k) with k activated
//
// The returned builder is where the caller writes the value.
func promote(e *env, slot *builder, k Kind) builder {
	cur := *slot
	if busy(cur) {
		violation("%s slot written while a nested value is still open", cur.kind())
	}
	switch b := cur.(type) {
	case *unknownBuilder:
		nb := newBuilder(e, k)
		nb.resize(b.n)
		*slot = nb
		return nb
	case *unionBuilder:
		i := b.variant(k)
		if i < 0 {
			i = b.addVariant(k)
			e.stats.VariantsAdded++
			e.log.Debug("union variant added",
				zap.Stringer("kind", k),
				zap.Int("variant", i),
				zap.Int("row", b.length()))
		}
		b.activate(i)
		return b.variants[i]
	case *atomBuilder, *recordBuilder, *listBuilder:
		if cur.kind() == k {
			return cur
		}
		u := newUnionBuilder(e, cur)
		i := u.addVariant(k)
		u.activate(i)
		*slot = u
		e.stats.UnionsCreated++
		e.stats.VariantsAdded++
		e.log.Debug("slot promoted to union",
			zap.Stringer("from", cur.kind()),
			zap.Stringer("to", k),
			zap.Int("row", u.length()-1))
		return u.variants[i]
	default:
		violation("unexpected builder %T", cur)
		return nil
	}
}

func writeNull(slot *builder) {
	b := *slot
	if busy(b) {
		violation("%s slot written while a nested value is still open", b.kind())
	}
	b.resize(b.length() + 1)
}

func writeAtom(e *env, slot *builder, v interface{}) {
	k, x, ok := normalize(v)
	if !ok {
		violation("unsupported atom %T (%v)", v, v)
	}
	promote(e, slot, k).(*atomBuilder).append(x)
}

// withRecord writes one record at slot. The row is committed when fn
// returns or panics.
func withRecord(e *env, slot *builder, fn func(*RecordGuard)) {
	rec := promote(e, slot, KindRecord).(*recordBuilder)
	rec.beginRow()
	g := &RecordGuard{e: e, rec: rec}
	defer func() {
		g.done = true
		rec.commitRow()
	}()
	if fn != nil {
		fn(g)
	}
}

// withList writes one list entry at slot. The entry is closed when fn
// returns or panics.
func withList(e *env, slot *builder, fn func(*ListGuard)) {
	list := promote(e, slot, KindList).(*listBuilder)
	list.beginEntry()
	g := &ListGuard{e: e, list: list}
	defer func() {
		g.done = true
		list.endEntry()
	}()
	if fn != nil {
		fn(g)
	}
}

// writeData writes a whole nested Go value at slot.
func writeData(e *env, slot *builder, v interface{}) {
	switch x := v.(type) {
	case nil:
		writeNull(slot)
	case Object:
		withRecord(e, slot, func(r *RecordGuard) {
			for _, m := range x {
				r.Field(m.Key).Data(m.Value)
			}
		})
	case *Object:
		if x == nil {
			writeNull(slot)
			return
		}
		writeData(e, slot, *x)
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		withRecord(e, slot, func(r *RecordGuard) {
			for _, k := range keys {
				r.Field(k).Data(x[k])
			}
		})
	case []interface{}:
		withList(e, slot, func(l *ListGuard) {
			for _, elem := range x {
				l.Data(elem)
			}
		})
	default:
		writeAtom(e, slot, v)
	}
}
