package track

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/types"
)

var (
	ErrNodeAlreadyExists = errors.New("track: node already exists")
	ErrSubstateNotFound  = errors.New("track: substate not found")
	ErrFinalized         = errors.New("track: already finalized")
)

// TrackedSubstate is a substate as read from the database together with the
// pending write of this transaction.
type TrackedSubstate struct {
	key types.SubstateKey
	// base is the database value, nil when it does not exist
	base      *types.IndexedValue
	baseKnown bool
	// write is the pending value, nil with hasWrite means delete
	write    *types.IndexedValue
	hasWrite bool
}

// Value is the current value of the substate, nil if it does not exist.
func (s *TrackedSubstate) Value() *types.IndexedValue {
	if s.hasWrite {
		return s.write
	}
	return s.base
}

type trackedPartition struct {
	// sort bytes -> *TrackedSubstate
	substates *treemap.Map
	// every database entry of the partition has been loaded
	fullyLoaded bool
}

type trackedNode struct {
	// created in this transaction, nothing of it is in the database
	isNew      bool
	partitions map[types.PartitionNumber]*trackedPartition
}

type substateAddr struct {
	node      types.NodeId
	partition types.PartitionNumber
	key       types.SubstateKey
}

// Track caches the substates read and written by a transaction on top of a
// SubstateDatabase. Nothing reaches the database before Finalize.
type Track struct {
	db     store.SubstateDatabase
	mapper store.KeyMapper
	nodes  map[types.NodeId]*trackedNode

	forceWrites map[substateAddr]*types.IndexedValue
	transient   map[substateAddr]struct{}
	finalized   bool
}

func NewTrack(db store.SubstateDatabase, mapper store.KeyMapper) *Track {
	if mapper == nil {
		mapper = store.SpreadPrefixKeyMapper{}
	}
	return &Track{
		db:          db,
		mapper:      mapper,
		nodes:       make(map[types.NodeId]*trackedNode),
		forceWrites: make(map[substateAddr]*types.IndexedValue),
		transient:   make(map[substateAddr]struct{}),
	}
}

func (t *Track) node(id types.NodeId) *trackedNode {
	n, ok := t.nodes[id]
	if !ok {
		n = &trackedNode{partitions: make(map[types.PartitionNumber]*trackedPartition)}
		t.nodes[id] = n
	}
	return n
}

func (t *Track) partition(id types.NodeId, p types.PartitionNumber) *trackedPartition {
	n := t.node(id)
	tp, ok := n.partitions[p]
	if !ok {
		tp = &trackedPartition{
			substates:   treemap.NewWithStringComparator(),
			fullyLoaded: n.isNew,
		}
		n.partitions[p] = tp
	}
	return tp
}

func (t *Track) checkOpen() error {
	if t.finalized {
		return ErrFinalized
	}
	return nil
}

// CreateNode adds a node which does not exist in the database.
func (t *Track) CreateNode(id types.NodeId, substates types.NodeSubstates, onAccess OnStoreAccess) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if n, ok := t.nodes[id]; ok && (n.isNew || n.hasValue()) {
		return errors.WithMessagef(ErrNodeAlreadyExists, "node %s", id)
	}
	n := &trackedNode{isNew: true, partitions: make(map[types.PartitionNumber]*trackedPartition)}
	t.nodes[id] = n
	for p, sub := range substates {
		tp := t.partition(id, p)
		for k, v := range sub {
			tp.substates.Put(string(k.SortBytes()), &TrackedSubstate{
				key:       k,
				baseKnown: true,
				write:     v,
				hasWrite:  true,
			})
			if err := onAccess.emit(StoreAccess{Kind: NewEntryInTrack, NodeId: id, Partition: p, Key: k, Size: v.Len()}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *trackedNode) hasValue() bool {
	for _, tp := range n.partitions {
		for _, v := range tp.substates.Values() {
			if v.(*TrackedSubstate).Value() != nil {
				return true
			}
		}
	}
	return false
}

// Level1 读取已经在track中的substate，不存在时从db中加载
func (t *Track) tracked(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, onAccess OnStoreAccess) (*TrackedSubstate, error) {
	tp := t.partition(id, p)
	if v, found := tp.substates.Get(string(k.SortBytes())); found {
		return v.(*TrackedSubstate), nil
	}
	s := &TrackedSubstate{key: k, baseKnown: true}
	tp.substates.Put(string(k.SortBytes()), s)
	if tp.fullyLoaded {
		return s, nil
	}
	return s, t.loadBase(id, p, s, onAccess)
}

// Level2 读取，从db中读取
func (t *Track) loadBase(id types.NodeId, p types.PartitionNumber, s *TrackedSubstate, onAccess OnStoreAccess) error {
	raw, found, err := t.db.GetSubstate(t.mapper.ToDbPartitionKey(id, p), t.mapper.ToDbSortKey(s.key))
	if err != nil {
		return store.WrapDbError(err, "read substate")
	}
	s.baseKnown = true
	access := StoreAccess{Kind: ReadFromDbNotFound, NodeId: id, Partition: p, Key: s.key}
	if found {
		value, err := types.DecodeIndexedValue(raw)
		if err != nil {
			return &store.DbError{Err: err}
		}
		s.base = value
		access.Kind = ReadFromDb
		access.Size = len(raw)
	}
	return onAccess.emit(access)
}

// GetSubstate returns the current value of a substate.
func (t *Track) GetSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, onAccess OnStoreAccess) (*types.IndexedValue, bool, error) {
	if err := t.checkOpen(); err != nil {
		return nil, false, err
	}
	s, err := t.tracked(id, p, k, onAccess)
	if err != nil {
		return nil, false, err
	}
	v := s.Value()
	return v, v != nil, nil
}

// SetSubstate writes a substate without reading its previous value.
func (t *Track) SetSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, value *types.IndexedValue, onAccess OnStoreAccess) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	tp := t.partition(id, p)
	if v, found := tp.substates.Get(string(k.SortBytes())); found {
		s := v.(*TrackedSubstate)
		s.write, s.hasWrite = value, true
		return nil
	}
	tp.substates.Put(string(k.SortBytes()), &TrackedSubstate{
		key:       k,
		baseKnown: tp.fullyLoaded,
		write:     value,
		hasWrite:  true,
	})
	return onAccess.emit(StoreAccess{Kind: NewEntryInTrack, NodeId: id, Partition: p, Key: k, Size: value.Len()})
}

// RemoveSubstate deletes a substate and returns its previous value.
func (t *Track) RemoveSubstate(id types.NodeId, p types.PartitionNumber, k types.SubstateKey, onAccess OnStoreAccess) (*types.IndexedValue, bool, error) {
	if err := t.checkOpen(); err != nil {
		return nil, false, err
	}
	s, err := t.tracked(id, p, k, onAccess)
	if err != nil {
		return nil, false, err
	}
	old := s.Value()
	if old == nil {
		return nil, false, nil
	}
	s.write, s.hasWrite = nil, true
	return old, true, nil
}

// loadPartition brings every database entry of a partition into the track.
func (t *Track) loadPartition(id types.NodeId, p types.PartitionNumber, onAccess OnStoreAccess) (*trackedPartition, error) {
	tp := t.partition(id, p)
	if tp.fullyLoaded {
		return tp, nil
	}
	entries, err := t.db.ListEntries(t.mapper.ToDbPartitionKey(id, p))
	if err != nil {
		return nil, store.WrapDbError(err, "list partition")
	}
	for _, e := range entries {
		k, err := t.mapper.FromDbSortKey(e.SortKey)
		if err != nil {
			return nil, &store.DbError{Err: err}
		}
		var s *TrackedSubstate
		if v, found := tp.substates.Get(string(k.SortBytes())); found {
			s = v.(*TrackedSubstate)
			if s.baseKnown {
				continue
			}
		} else {
			s = &TrackedSubstate{key: k}
			tp.substates.Put(string(k.SortBytes()), s)
		}
		value, err := types.DecodeIndexedValue(e.Value)
		if err != nil {
			return nil, &store.DbError{Err: err}
		}
		s.base, s.baseKnown = value, true
		if err := onAccess.emit(StoreAccess{Kind: ReadFromDb, NodeId: id, Partition: p, Key: k, Size: len(e.Value)}); err != nil {
			return nil, err
		}
	}
	// substates written blind and absent from the db did not exist before
	it := tp.substates.Iterator()
	for it.Next() {
		it.Value().(*TrackedSubstate).baseKnown = true
	}
	tp.fullyLoaded = true
	return tp, nil
}

// scan lists up to limit live substates of a partition accepted by keep, a
// nil keep accepts all.
func (t *Track) scan(id types.NodeId, p types.PartitionNumber, limit int, keep func(types.SubstateKey) bool,
	onAccess OnStoreAccess) ([]*TrackedSubstate, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	tp, err := t.loadPartition(id, p, onAccess)
	if err != nil {
		return nil, err
	}
	var out []*TrackedSubstate
	it := tp.substates.Iterator()
	for it.Next() && (limit < 0 || len(out) < limit) {
		s := it.Value().(*TrackedSubstate)
		if s.Value() != nil && (keep == nil || keep(s.key)) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ScanKeys returns up to limit keys of a partition, limit < 0 means all.
func (t *Track) ScanKeys(id types.NodeId, p types.PartitionNumber, limit int, onAccess OnStoreAccess) ([]types.SubstateKey, error) {
	substates, err := t.scan(id, p, limit, nil, onAccess)
	if err != nil {
		return nil, err
	}
	keys := make([]types.SubstateKey, 0, len(substates))
	for _, s := range substates {
		keys = append(keys, s.key)
	}
	return keys, nil
}

func isSorted(k types.SubstateKey) bool {
	return k.Kind() == types.SubstateKeySorted
}

// ScanSortedSubstates returns up to limit sorted-key entries of a partition in
// key order. Other keys do not count toward limit.
func (t *Track) ScanSortedSubstates(id types.NodeId, p types.PartitionNumber, limit int, onAccess OnStoreAccess) ([]types.SubstateEntry, error) {
	substates, err := t.scan(id, p, limit, isSorted, onAccess)
	if err != nil {
		return nil, err
	}
	entries := make([]types.SubstateEntry, 0, len(substates))
	for _, s := range substates {
		entries = append(entries, types.SubstateEntry{Key: s.key, Value: s.Value()})
	}
	return entries, nil
}

// DrainSubstates removes and returns up to limit entries of a partition.
func (t *Track) DrainSubstates(id types.NodeId, p types.PartitionNumber, limit int, onAccess OnStoreAccess) ([]types.SubstateEntry, error) {
	substates, err := t.scan(id, p, limit, nil, onAccess)
	if err != nil {
		return nil, err
	}
	entries := make([]types.SubstateEntry, 0, len(substates))
	for _, s := range substates {
		entries = append(entries, types.SubstateEntry{Key: s.key, Value: s.Value()})
		s.write, s.hasWrite = nil, true
	}
	return entries, nil
}

// GetTrackedSubstateInfo reports whether a tracked substate was created or updated.
func (t *Track) GetTrackedSubstateInfo(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) TrackedSubstateInfo {
	n, ok := t.nodes[id]
	if !ok {
		return SubstateUnmodified
	}
	if n.isNew {
		return SubstateNew
	}
	tp, ok := n.partitions[p]
	if !ok {
		return SubstateUnmodified
	}
	v, found := tp.substates.Get(string(k.SortBytes()))
	if !found {
		return SubstateUnmodified
	}
	s := v.(*TrackedSubstate)
	switch {
	case !s.hasWrite:
		return SubstateUnmodified
	case s.baseKnown && s.base == nil:
		return SubstateNew
	default:
		return SubstateUpdated
	}
}

// ForceWrite keeps the current value of a substate even if the transaction fails.
func (t *Track) ForceWrite(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	n, ok := t.nodes[id]
	if !ok {
		return errors.WithMessagef(ErrSubstateNotFound, "force write %s", id)
	}
	tp, ok := n.partitions[p]
	if !ok {
		return errors.WithMessagef(ErrSubstateNotFound, "force write %s/%d", id, p)
	}
	v, found := tp.substates.Get(string(k.SortBytes()))
	if !found {
		return errors.WithMessagef(ErrSubstateNotFound, "force write %s/%d/%s", id, p, k)
	}
	t.forceWrites[substateAddr{id, p, k}] = v.(*TrackedSubstate).Value()
	return nil
}

// MarkTransient excludes a substate from the database updates.
func (t *Track) MarkTransient(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.transient[substateAddr{id, p, k}] = struct{}{}
	return nil
}

func (t *Track) isTransient(id types.NodeId, p types.PartitionNumber, k types.SubstateKey) bool {
	_, ok := t.transient[substateAddr{id, p, k}]
	return ok
}
