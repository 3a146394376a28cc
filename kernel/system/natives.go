package system

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/callframe"
	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/types"
)

const (
	BlueprintEcho          = "Echo"
	BlueprintKeyValueStore = "KeyValueStore"
	BlueprintAccount       = "Account"

	// PartitionMain holds the state field of a node.
	PartitionMain types.PartitionNumber = 0
	// PartitionEntries holds the entries of a key value store.
	PartitionEntries types.PartitionNumber = 1
)

func init() {
	RegisterNatives(DefaultRegistry)
}

// RegisterNatives adds the builtin blueprints to r.
func RegisterNatives(r Registry) {
	r.RegisterNativeMethod(BlueprintEcho, "echo", echo)

	r.RegisterNativeMethod(BlueprintKeyValueStore, "new", kvNew)
	r.RegisterNativeMethod(BlueprintKeyValueStore, "set", kvSet)
	r.RegisterNativeMethod(BlueprintKeyValueStore, "get", kvGet)
	r.RegisterNativeMethod(BlueprintKeyValueStore, "remove", kvRemove)
	r.RegisterNativeMethod(BlueprintKeyValueStore, "keys", kvKeys)

	r.RegisterNativeMethod(BlueprintAccount, "create", accountCreate)
	r.RegisterNativeMethod(BlueprintAccount, "deposit", accountDeposit)
	r.RegisterNativeMethod(BlueprintAccount, "withdraw", accountWithdraw)
	r.RegisterNativeMethod(BlueprintAccount, "balance", accountBalance)
}

func mainSubstates(v *types.IndexedValue) types.NodeSubstates {
	s := types.NodeSubstates{}
	s.Set(PartitionMain, types.FieldKey(0), v)
	return s
}

func receiver(actor *Actor) (types.NodeId, error) {
	if actor.Receiver == nil {
		return types.NodeId{}, errors.WithMessage(ErrNoReceiver, actor.String())
	}
	return *actor.Receiver, nil
}

func decodeArgs(args *types.IndexedValue, out interface{}) error {
	if err := rlp.DecodeBytes(args.Data(), out); err != nil {
		return errors.Wrap(ErrInvalidArgs, err.Error())
	}
	return nil
}

func encodeOutput(v interface{}) (*types.IndexedValue, error) {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, err
	}
	return types.NewIndexedValue(data, nil, nil), nil
}

func echo(_ engine.KernelApi, _ *Actor, args *types.IndexedValue) (*types.IndexedValue, error) {
	return args, nil
}

// KVArgs are the arguments of the KeyValueStore methods.
type KVArgs struct {
	Key   []byte
	Value []byte
}

func EncodeKVArgs(key, value []byte) *types.IndexedValue {
	data, _ := rlp.EncodeToBytes(&KVArgs{Key: key, Value: value})
	return types.NewIndexedValue(data, nil, nil)
}

func kvNew(api engine.KernelApi, _ *Actor, _ *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := api.KernelAllocateNodeId(types.EntityTypeInternalKeyValueStore)
	if err != nil {
		return nil, err
	}
	if err := api.KernelCreateNode(id, mainSubstates(types.EmptyValue())); err != nil {
		return nil, err
	}
	return types.NewIndexedValue(nil, []types.NodeId{id}, nil), nil
}

func kvSet(api engine.KernelApi, actor *Actor, args *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := receiver(actor)
	if err != nil {
		return nil, err
	}
	var kv KVArgs
	if err := decodeArgs(args, &kv); err != nil {
		return nil, err
	}
	err = api.KernelSetSubstate(id, PartitionEntries, types.MapKey(kv.Key), types.NewIndexedValue(kv.Value, nil, nil))
	return nil, err
}

// kvGet returns the value, or no data when the key is missing.
func kvGet(api engine.KernelApi, actor *Actor, args *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := receiver(actor)
	if err != nil {
		return nil, err
	}
	var kv KVArgs
	if err := decodeArgs(args, &kv); err != nil {
		return nil, err
	}
	h, err := api.KernelOpenSubstate(id, PartitionEntries, types.MapKey(kv.Key), types.LockFlagsReadOnly, nil)
	if errors.Is(err, callframe.ErrSubstateFault) {
		return types.EmptyValue(), nil
	}
	if err != nil {
		return nil, err
	}
	v, err := api.KernelReadSubstate(h)
	if err != nil {
		return nil, err
	}
	if err := api.KernelCloseSubstate(h); err != nil {
		return nil, err
	}
	return types.NewIndexedValue(v.Data(), nil, nil), nil
}

func kvRemove(api engine.KernelApi, actor *Actor, args *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := receiver(actor)
	if err != nil {
		return nil, err
	}
	var kv KVArgs
	if err := decodeArgs(args, &kv); err != nil {
		return nil, err
	}
	v, err := api.KernelRemoveSubstate(id, PartitionEntries, types.MapKey(kv.Key))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return types.EmptyValue(), nil
	}
	return types.NewIndexedValue(v.Data(), nil, nil), nil
}

// kvKeys lists up to 64 keys in key order.
func kvKeys(api engine.KernelApi, actor *Actor, _ *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := receiver(actor)
	if err != nil {
		return nil, err
	}
	keys, err := api.KernelScanKeys(id, PartitionEntries, 64)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if b, ok := k.Map(); ok {
			out = append(out, b)
		}
	}
	return encodeOutput(out)
}

func DecodeKeys(v *types.IndexedValue) ([][]byte, error) {
	var keys [][]byte
	err := rlp.DecodeBytes(v.Data(), &keys)
	return keys, err
}

type accountState struct {
	Owner []byte
}

func encodeBalance(balance uint64) *types.IndexedValue {
	data, _ := rlp.EncodeToBytes(balance)
	return types.NewIndexedValue(data, nil, nil)
}

func DecodeBalance(v *types.IndexedValue) (uint64, error) {
	var balance uint64
	err := rlp.DecodeBytes(v.Data(), &balance)
	return balance, err
}

// EncodeAmount builds the arguments of deposit and withdraw.
func EncodeAmount(amount uint64) *types.IndexedValue {
	return encodeBalance(amount)
}

// createAccount creates the account node id owning a fresh empty vault.
func createAccount(api engine.KernelApi, id types.NodeId, owner []byte) error {
	vault, err := api.KernelAllocateNodeId(types.EntityTypeInternalFungibleVault)
	if err != nil {
		return err
	}
	if err := api.KernelCreateNode(vault, mainSubstates(encodeBalance(0))); err != nil {
		return err
	}
	state, err := rlp.EncodeToBytes(&accountState{Owner: owner})
	if err != nil {
		return err
	}
	return api.KernelCreateNode(id, mainSubstates(types.NewIndexedValue(state, []types.NodeId{vault}, nil)))
}

func accountCreate(api engine.KernelApi, _ *Actor, args *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := api.KernelAllocateNodeId(types.EntityTypeGlobalAccount)
	if err != nil {
		return nil, err
	}
	if err := createAccount(api, id, args.Data()); err != nil {
		return nil, err
	}
	return types.NewIndexedValue(nil, nil, []types.NodeId{id}), nil
}

// withVault opens the vault of an account and hands its balance to fn.
func withVault(api engine.KernelApi, account types.NodeId, flags types.LockFlags,
	fn func(h types.LockHandle, balance uint64) error) error {
	ha, err := api.KernelOpenSubstate(account, PartitionMain, types.FieldKey(0), types.LockFlagsReadOnly, nil)
	if err != nil {
		return err
	}
	state, err := api.KernelReadSubstate(ha)
	if err != nil {
		return err
	}
	owns := state.OwnedNodes()
	if len(owns) != 1 {
		return errors.Errorf("account %s owns %d vaults", account, len(owns))
	}
	hv, err := api.KernelOpenSubstate(owns[0], PartitionMain, types.FieldKey(0), flags, nil)
	if err != nil {
		return err
	}
	v, err := api.KernelReadSubstate(hv)
	if err != nil {
		return err
	}
	balance, err := DecodeBalance(v)
	if err != nil {
		return err
	}
	if err := fn(hv, balance); err != nil {
		return err
	}
	if err := api.KernelCloseSubstate(hv); err != nil {
		return err
	}
	return api.KernelCloseSubstate(ha)
}

func accountDeposit(api engine.KernelApi, actor *Actor, args *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := receiver(actor)
	if err != nil {
		return nil, err
	}
	var amount uint64
	if err := decodeArgs(args, &amount); err != nil {
		return nil, err
	}
	err = withVault(api, id, types.LockFlagMutable, func(h types.LockHandle, balance uint64) error {
		return api.KernelWriteSubstate(h, encodeBalance(balance+amount))
	})
	return nil, err
}

func accountWithdraw(api engine.KernelApi, actor *Actor, args *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := receiver(actor)
	if err != nil {
		return nil, err
	}
	var amount uint64
	if err := decodeArgs(args, &amount); err != nil {
		return nil, err
	}
	err = withVault(api, id, types.LockFlagMutable, func(h types.LockHandle, balance uint64) error {
		if balance < amount {
			return errors.WithMessagef(ErrInsufficientBalance, "%d < %d", balance, amount)
		}
		return api.KernelWriteSubstate(h, encodeBalance(balance-amount))
	})
	return nil, err
}

func accountBalance(api engine.KernelApi, actor *Actor, _ *types.IndexedValue) (*types.IndexedValue, error) {
	id, err := receiver(actor)
	if err != nil {
		return nil, err
	}
	var out *types.IndexedValue
	err = withVault(api, id, types.LockFlagsReadOnly, func(_ types.LockHandle, balance uint64) error {
		out = encodeBalance(balance)
		return nil
	})
	return out, err
}
