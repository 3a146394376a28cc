package cmd

import (
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/xuperchain/xkernel/kernel/common/xconfig"
	"github.com/xuperchain/xkernel/kernel/engine"
	"github.com/xuperchain/xkernel/kernel/store"
	"github.com/xuperchain/xkernel/kernel/system"
	"github.com/xuperchain/xkernel/kernel/types"
	"github.com/xuperchain/xkernel/lib/logs"
	"github.com/xuperchain/xkernel/lib/metrics"
	"github.com/xuperchain/xkernel/lib/utils"
)

type ExecCmd struct {
	BaseCmd
}

type execOptions struct {
	envCfgPath string
	accounts   int
	transfers  int
	seed       int64
}

func GetExecCmd() *ExecCmd {
	execCmdIns := new(ExecCmd)

	// 定义命令行参数变量
	opts := &execOptions{}

	execCmdIns.cmd = &cobra.Command{
		Use:           "exec",
		Short:         "Run account transfer transactions against the configured substate database.",
		Example:       "xkernel exec --conf conf/env.yaml --accounts 10 --transfers 1000",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.OutOrStdout(), opts)
		},
	}

	// 设置命令行参数并绑定变量
	flags := execCmdIns.cmd.Flags()
	flags.StringVarP(&opts.envCfgPath, "conf", "c", "", "environment config file path, empty for an in-memory database")
	flags.IntVar(&opts.accounts, "accounts", 4, "accounts created before the transfers")
	flags.IntVar(&opts.transfers, "transfers", 100, "number of transfer transactions")
	flags.Int64Var(&opts.seed, "seed", 1, "seed picking transfer parties and amounts")

	return execCmdIns
}

// loadKernelConf reads the kernel config named by the env config, the
// defaults run on an in-memory database.
func loadKernelConf(envCfgPath string) (*xconfig.EnvConf, *xconfig.KernelConf, error) {
	if envCfgPath == "" {
		return xconfig.GetDefEnvConf(), xconfig.GetDefKernelConf(), nil
	}
	envConf, err := xconfig.LoadEnvConf(envCfgPath)
	if err != nil {
		return nil, nil, err
	}
	conf, err := xconfig.LoadKernelConf(envConf.GenConfFilePath(envConf.KernelConf))
	if err != nil {
		return nil, nil, err
	}
	return envConf, conf, nil
}

type execStats struct {
	txs       int
	failed    int
	costUnits uint64
}

func (s *execStats) add(r *system.Receipt) {
	s.txs++
	s.costUnits += r.CostUnits
	if !r.Success {
		s.failed++
	}
}

func runExec(out io.Writer, opts *execOptions) error {
	if opts.accounts <= 0 {
		return errors.Errorf("accounts must be positive, got %d", opts.accounts)
	}
	envConf, conf, err := loadKernelConf(opts.envCfgPath)
	if err != nil {
		return err
	}
	log, err := openLogger(opts.envCfgPath)
	if err != nil {
		return err
	}
	if envConf.MetricSwitch || conf.MetricSwitch {
		metrics.RegisterMetrics()
		conf.MetricSwitch = true
	}

	dbPath := conf.Storage.Path
	if !filepath.IsAbs(dbPath) {
		dbPath = envConf.GenDataAbsPath(dbPath)
	}
	db, closer, err := system.OpenDatabase(&conf.Storage, dbPath, log)
	if err != nil {
		return err
	}
	defer closer()

	log.Info("exec start", "engine", conf.Storage.Engine, "path", dbPath,
		"accounts", opts.accounts, "transfers", opts.transfers)
	begin := time.Now()
	exec := system.NewExecutor(conf, db, system.DefaultRegistry, log)
	stats := &execStats{}
	var seq uint64

	accounts := make([]types.NodeId, 0, opts.accounts)
	for i := 0; i < opts.accounts; i++ {
		seq++
		var account types.NodeId
		receipt, err := exec.Execute(utils.SeedToTxHash(seq), nil, func(api engine.KernelApi) error {
			res, err := system.Call(api, system.FunctionActor(system.BlueprintAccount, "create"),
				types.NewIndexedValue([]byte(fmt.Sprintf("owner-%d", i)), nil, nil))
			if err != nil {
				return err
			}
			account = res.References()[0]
			_, err = system.Call(api, system.MethodActor(account, system.BlueprintAccount, "deposit"), system.EncodeAmount(1000))
			return err
		})
		if err != nil {
			return err
		}
		if !receipt.Success {
			return errors.WithMessage(receipt.Err, "create account")
		}
		stats.add(receipt)
		accounts = append(accounts, account)
	}

	rng := rand.New(rand.NewSource(opts.seed))
	for i := 0; i < opts.transfers; i++ {
		seq++
		from, to := accounts[rng.Intn(len(accounts))], accounts[rng.Intn(len(accounts))]
		amount := uint64(rng.Intn(500))
		receipt, err := exec.Execute(utils.SeedToTxHash(seq), []types.NodeId{from, to}, func(api engine.KernelApi) error {
			if _, err := system.Call(api, system.MethodActor(from, system.BlueprintAccount, "withdraw"), system.EncodeAmount(amount)); err != nil {
				return err
			}
			_, err := system.Call(api, system.MethodActor(to, system.BlueprintAccount, "deposit"), system.EncodeAmount(amount))
			return err
		})
		if err != nil {
			return err
		}
		if !receipt.Success && !errors.Is(receipt.Err, system.ErrInsufficientBalance) {
			log.Warn("transfer failed", "seq", seq, "err", receipt.Err)
		}
		stats.add(receipt)
	}

	total, err := totalBalance(exec, accounts, log)
	if err != nil {
		return err
	}
	if want := uint64(1000 * len(accounts)); total != want {
		return errors.Errorf("total balance %d after transfers, want %d", total, want)
	}
	report, err := store.CheckDatabase(db, store.SpreadPrefixKeyMapper{})
	if err != nil {
		return errors.WithMessage(err, "check database")
	}
	fmt.Fprintf(out, "engine:          %s\n", conf.Storage.Engine)
	fmt.Fprintf(out, "transactions:    %d\n", stats.txs)
	fmt.Fprintf(out, "failed:          %d\n", stats.failed)
	fmt.Fprintf(out, "cost units:      %d\n", stats.costUnits)
	fmt.Fprintf(out, "total balance:   %d\n", total)
	fmt.Fprintf(out, "nodes:           %d\n", report.Nodes)
	fmt.Fprintf(out, "root nodes:      %d\n", report.RootNodes)
	fmt.Fprintf(out, "cost:            %s\n", time.Since(begin))
	return nil
}

// total balance, used to check that transfers conserve funds
func totalBalance(exec *system.Executor, accounts []types.NodeId, log logs.Logger) (uint64, error) {
	var total uint64
	for i, account := range accounts {
		receipt, err := exec.Execute(utils.SeedToTxHash(uint64(1<<32+i)), []types.NodeId{account}, func(api engine.KernelApi) error {
			res, err := system.Call(api, system.MethodActor(account, system.BlueprintAccount, "balance"), nil)
			if err != nil {
				return err
			}
			balance, err := system.DecodeBalance(res)
			total += balance
			return err
		})
		if err != nil {
			return 0, err
		}
		if !receipt.Success {
			return 0, receipt.Err
		}
	}
	log.Debug("total balance", "accounts", len(accounts), "total", total)
	return total, nil
}
