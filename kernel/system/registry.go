package system

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/types"
)

type Registry interface {
	RegisterNativeMethod(blueprint, method string, handler NativeMethod)
	GetNativeMethod(blueprint, method string) (NativeMethod, error)
}

// NativeMethod runs inside the frame pushed for actor.
type NativeMethod func(api engine.KernelApi, actor *Actor, args *types.IndexedValue) (*types.IndexedValue, error)

var (
	DefaultRegistry Registry = NewRegistry()
)

type registryImpl struct {
	mutex   sync.RWMutex
	methods map[string]map[string]NativeMethod
}

func NewRegistry() Registry {
	return &registryImpl{methods: make(map[string]map[string]NativeMethod)}
}

func (r *registryImpl) RegisterNativeMethod(blueprint, method string, handler NativeMethod) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	blueprintMap, ok := r.methods[blueprint]
	if !ok {
		blueprintMap = make(map[string]NativeMethod)
		r.methods[blueprint] = blueprintMap
	}
	_, ok = blueprintMap[method]
	if ok {
		panic(fmt.Sprintf("native method %s for %s exists", method, blueprint))
	}
	blueprintMap[method] = handler
}

func (r *registryImpl) GetNativeMethod(blueprint, method string) (NativeMethod, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	blueprintMap, ok := r.methods[blueprint]
	if !ok {
		return nil, errors.WithMessagef(ErrMethodNotFound, "blueprint %s", blueprint)
	}
	handler, ok := blueprintMap[method]
	if !ok {
		return nil, errors.WithMessagef(ErrMethodNotFound, "method %s for %s", method, blueprint)
	}
	return handler, nil
}

func RegisterNativeMethod(blueprint, method string, handler NativeMethod) {
	DefaultRegistry.RegisterNativeMethod(blueprint, method, handler)
}
