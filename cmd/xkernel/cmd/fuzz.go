package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	hex "github.com/tmthrgd/go-hex"

	"github.com/xuperchain/xkernel/kernel/common/xconfig"
	"github.com/xuperchain/xkernel/kernel/fuzz"
	"github.com/xuperchain/xkernel/lib/logs"
	"github.com/xuperchain/xkernel/lib/utils"
)

type FuzzCmd struct {
	BaseCmd
}

type fuzzOptions struct {
	envCfgPath string
	scenario   string
	seeds      uint64
	start      uint64
	steps      int
	workers    int
}

func GetFuzzCmd() *FuzzCmd {
	fuzzCmdIns := new(FuzzCmd)

	// 定义命令行参数变量
	opts := &fuzzOptions{}

	fuzzCmdIns.cmd = &cobra.Command{
		Use:           "fuzz",
		Short:         "Run seeded random action sequences against the kernel.",
		Example:       "xkernel fuzz --scenario two-open --seeds 1000000 --workers 8",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFuzz(cmd.OutOrStdout(), opts)
		},
	}

	// 设置命令行参数并绑定变量
	flags := fuzzCmdIns.cmd.Flags()
	flags.StringVarP(&opts.envCfgPath, "conf", "c", "", "environment config file path, used to set up logging")
	flags.StringVar(&opts.scenario, "scenario", fuzz.ScenarioOneNode, "one-node|two-open|three-chain|random")
	flags.Uint64Var(&opts.seeds, "seeds", 10000, "number of seeds to run")
	flags.Uint64Var(&opts.start, "start", 0, "first seed")
	flags.IntVar(&opts.steps, "steps", 0, "random actions per run, 0 for the scenario default")
	flags.IntVarP(&opts.workers, "workers", "w", 4, "parallel workers")

	return fuzzCmdIns
}

func runFuzz(out io.Writer, opts *fuzzOptions) error {
	gen, err := fuzz.ScenarioGenerator(opts.scenario, opts.steps)
	if err != nil {
		return err
	}
	log, err := openLogger(opts.envCfgPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("fuzz campaign start", "scenario", opts.scenario, "start", opts.start,
		"seeds", opts.seeds, "workers", opts.workers)
	begin := time.Now()
	campaign := &fuzz.Campaign{Generator: gen, Workers: opts.workers, Log: log}
	summary, err := campaign.Run(ctx, opts.start, opts.seeds)
	if err != nil {
		return err
	}
	printSummary(out, opts.scenario, summary, time.Since(begin))

	if len(summary.Fatal) > 0 {
		return errors.Errorf("%d runs found kernel bugs, first seed %d", len(summary.Fatal), summary.Fatal[0].Seed)
	}
	return nil
}

func printSummary(out io.Writer, scenario string, s *fuzz.Summary, cost time.Duration) {
	fmt.Fprintf(out, "scenario:        %s\n", scenario)
	fmt.Fprintf(out, "runs:            %d\n", s.Runs)
	fmt.Fprintf(out, "success count:   %d\n", s.Successes)
	fmt.Fprintf(out, "longest streak:  %d\n", s.LongestStreak)
	fmt.Fprintf(out, "max actions:     %d\n", s.MaxExecuted)
	for kind, n := range s.ErrorKinds {
		fmt.Fprintf(out, "rejected(%s): %d\n", kind, n)
	}
	for _, res := range s.Fatal {
		fmt.Fprintf(out, "BUG seed=%d tx=%s actions=[%s]\n  %v\n",
			res.Seed, hex.EncodeToString(utils.SeedToTxHash(res.Seed)), fuzz.FormatActions(res.Actions), res.Err)
	}
	fmt.Fprintf(out, "cost:            %s\n", cost)
}

func openLogger(envCfgPath string) (logs.Logger, error) {
	if envCfgPath == "" {
		return logs.NewLoggerFromConf(nil)
	}
	envConf, err := xconfig.LoadEnvConf(envCfgPath)
	if err != nil {
		return nil, err
	}
	logConf, err := logs.LoadLogConf(envConf.GenConfFilePath(envConf.LogConf))
	if err != nil {
		return nil, err
	}
	logConf.Filepath = envConf.GenDirAbsPath(envConf.LogDir)
	return logs.NewLoggerFromConf(logConf)
}
