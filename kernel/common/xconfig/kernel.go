package xconfig

import (
	"reflect"

	"github.com/docker/go-units"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/xuperchain/xkernel/kernel/types"
)

// ByteSize is read from human readable strings like "64MB".
type ByteSize int64

const (
	StorageEngineMemory  = "memory"
	StorageEngineLevelDB = "leveldb"
	StorageEngineBadger  = "badger"
)

// KernelConf configures one transaction kernel and the system layer around it.
type KernelConf struct {
	MaxCallDepth     int      `yaml:"maxCallDepth,omitempty"`
	MaxSubstateSize  ByteSize `yaml:"maxSubstateSize,omitempty"`
	MaxOpenSubstates int      `yaml:"maxNumberOfOpenSubstates,omitempty" mapstructure:"maxNumberOfOpenSubstates"`

	Costing   CostingConf   `yaml:"costing,omitempty"`
	Storage   StorageConf   `yaml:"storage,omitempty"`
	LockFault LockFaultConf `yaml:"lockFault,omitempty"`
	Trace     bool          `yaml:"trace,omitempty"`

	// log config file, empty for the discard logger
	LogConf      string `yaml:"logConf,omitempty"`
	MetricSwitch bool   `yaml:"metricSwitch,omitempty"`
}

// CostingConf holds the cost units charged per kernel operation.
type CostingConf struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// 0 means unlimited
	ExecutionCostLimit uint64 `yaml:"executionCostLimit,omitempty"`

	InvokeBase        uint64 `yaml:"invokeBase,omitempty"`
	InvokePerByte     uint64 `yaml:"invokePerByte,omitempty"`
	AllocateNodeId    uint64 `yaml:"allocateNodeId,omitempty"`
	CreateNodeBase    uint64 `yaml:"createNodeBase,omitempty"`
	CreateNodePerByte uint64 `yaml:"createNodePerByte,omitempty"`
	DropNodeBase      uint64 `yaml:"dropNodeBase,omitempty"`
	MovePartition     uint64 `yaml:"movePartition,omitempty"`
	OpenSubstateBase  uint64 `yaml:"openSubstateBase,omitempty"`
	ReadPerByte       uint64 `yaml:"readPerByte,omitempty"`
	WritePerByte      uint64 `yaml:"writePerByte,omitempty"`
	CloseSubstateBase uint64 `yaml:"closeSubstateBase,omitempty"`
	ScanBase          uint64 `yaml:"scanBase,omitempty"`
	ScanPerItem       uint64 `yaml:"scanPerItem,omitempty"`
	StoreReadBase     uint64 `yaml:"storeReadBase,omitempty"`
	StoreReadPerByte  uint64 `yaml:"storeReadPerByte,omitempty"`
	StoreNewPerByte   uint64 `yaml:"storeNewPerByte,omitempty"`
}

type StorageConf struct {
	// memory, leveldb or badger
	Engine string `yaml:"engine,omitempty"`
	Path   string `yaml:"path,omitempty"`
	// number of substates in the read cache
	CacheSize int `yaml:"cacheSize,omitempty"`
	// engine memory cache
	MemCache    ByteSize `yaml:"memCache,omitempty"`
	FileHandles int      `yaml:"fileHandles,omitempty"`
	Compress    bool     `yaml:"compress,omitempty"`
}

// LockFaultConf lists the entity types whose nodes are created on first access.
type LockFaultConf struct {
	VirtualEntityTypes []types.EntityType `yaml:"virtualEntityTypes,omitempty"`
}

func GetDefKernelConf() *KernelConf {
	return &KernelConf{
		MaxCallDepth:     8,
		MaxSubstateSize:  2 * units.MiB,
		MaxOpenSubstates: 256,
		Costing: CostingConf{
			Enabled:            true,
			ExecutionCostLimit: 100000000,
			InvokeBase:         2000,
			InvokePerByte:      10,
			AllocateNodeId:     100,
			CreateNodeBase:     1000,
			CreateNodePerByte:  20,
			DropNodeBase:       500,
			MovePartition:      500,
			OpenSubstateBase:   200,
			ReadPerByte:        1,
			WritePerByte:       5,
			CloseSubstateBase:  100,
			ScanBase:           300,
			ScanPerItem:        50,
			StoreReadBase:      5000,
			StoreReadPerByte:   5,
			StoreNewPerByte:    20,
		},
		Storage: StorageConf{
			Engine:      StorageEngineMemory,
			Path:        "substates",
			CacheSize:   4096,
			MemCache:    128 * units.MiB,
			FileHandles: 512,
		},
		LockFault: LockFaultConf{
			VirtualEntityTypes: []types.EntityType{
				types.EntityTypeGlobalVirtualSecp256k1Account,
				types.EntityTypeGlobalVirtualEd25519Account,
			},
		},
	}
}

func LoadKernelConf(cfgFile string) (*KernelConf, error) {
	cfg := GetDefKernelConf()
	err := loadConf(cfgFile, cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		byteSizeHook,
		entityTypeHook,
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Errorf("load kernel config failed.err:%s", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *KernelConf) Validate() error {
	if c.MaxCallDepth < 0 || c.MaxOpenSubstates < 0 || c.MaxSubstateSize < 0 {
		return errors.Errorf("kernel limits must not be negative")
	}
	switch c.Storage.Engine {
	case StorageEngineMemory, StorageEngineLevelDB, StorageEngineBadger:
	default:
		return errors.Errorf("unknown storage engine %q", c.Storage.Engine)
	}
	for _, et := range c.LockFault.VirtualEntityTypes {
		if !et.IsGlobal() {
			return errors.Errorf("entity type %s can not be virtual", et)
		}
	}
	return nil
}

var (
	byteSizeType   = reflect.TypeOf(ByteSize(0))
	entityTypeType = reflect.TypeOf(types.EntityType(0))
)

func byteSizeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != byteSizeType || from.Kind() != reflect.String {
		return data, nil
	}
	size, err := units.RAMInBytes(data.(string))
	if err != nil {
		return nil, err
	}
	return ByteSize(size), nil
}

func entityTypeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != entityTypeType || from.Kind() != reflect.String {
		return data, nil
	}
	return types.ParseEntityType(data.(string))
}

func (s ByteSize) String() string {
	return units.BytesSize(float64(s))
}
