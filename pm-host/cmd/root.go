// Package cmd implements the commands for the pm-host executable.
package cmd

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/puppetmaster-fpga/pm-host/host/driver"
	cmdCommon "github.com/puppetmaster-fpga/pm-host/pm-host/cmd/common"
	"github.com/puppetmaster-fpga/pm-host/pm-host/cmd/common/metrics"
	scheduler "github.com/puppetmaster-fpga/pm-host/scheduler/api"
	"github.com/puppetmaster-fpga/pm-host/scheduler/mock"
	"github.com/puppetmaster-fpga/pm-host/scheduler/remote"
	workload "github.com/puppetmaster-fpga/pm-host/workload/api"
	workloadFile "github.com/puppetmaster-fpga/pm-host/workload/file"
	"github.com/puppetmaster-fpga/pm-host/workload/synthetic"
)

const (
	// CfgSchedulerBackend configures the scheduler backend (remote or
	// mock).
	CfgSchedulerBackend = "scheduler.backend"

	// CfgSchedulerAddress configures the path of the remote scheduler
	// portal socket.
	CfgSchedulerAddress = "scheduler.address"

	// CfgDriverWaitAll makes the run terminate once every transaction
	// has finished, instead of waiting for an external shutdown.
	CfgDriverWaitAll = "driver.wait_all"

	// CfgDriverSummary enables the completion summary table on
	// shutdown.
	CfgDriverSummary = "driver.summary"

	softwareVersion = "0.2.0"
)

var (
	rootCmd = &cobra.Command{
		Use:     "pm-host [transaction-file ...]",
		Short:   "Puppetmaster host driver",
		Version: softwareVersion,
		Args:    cobra.ArbitraryArgs,
		Run:     runRoot,
	}

	rootFlags = flag.NewFlagSet("", flag.ContinueOnError)
)

// RootCommand returns the root (top level) cobra.Command.
func RootCommand() *cobra.Command {
	return rootCmd
}

// Execute spawns the main entry point after handling the config file
// and command line arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRoot(_ *cobra.Command, args []string) {
	if err := cmdCommon.Init(); err != nil {
		cmdCommon.EarlyLogAndExit(err)
	}
	logger := cmdCommon.Logger()

	// Zero positional arguments selects the synthetic workload,
	// otherwise each argument is a transaction file.
	var builder workload.Builder
	if len(args) == 0 {
		logger.Info("no transaction files given, using synthetic workload")
		builder = synthetic.New(synthetic.DefaultConfig())
	} else {
		builder = workloadFile.New(args...)
	}

	var backend scheduler.Scheduler
	switch b := viper.GetString(CfgSchedulerBackend); b {
	case "remote":
		backend = remote.New(viper.GetString(CfgSchedulerAddress))
	case "mock":
		backend = mock.New()
	default:
		logger.Error("unsupported scheduler backend",
			"backend", b,
		)
		os.Exit(1)
	}

	var summaryWriter io.Writer
	if viper.GetBool(CfgDriverSummary) {
		summaryWriter = os.Stdout
	}

	// The workload is built here; construction failures must exit with
	// their registered code before anything is submitted.
	drv, err := driver.New(driver.Config{
		Builder:       builder,
		Backend:       backend,
		WaitAll:       viper.GetBool(CfgDriverWaitAll),
		SummaryWriter: summaryWriter,
	})
	if err != nil {
		logger.Error("failed to build workload",
			"err", err,
		)
		cmdCommon.ExitForError(err)
	}

	if metrics.Enabled() {
		metricsSvc := metrics.New()
		if err = metricsSvc.Start(); err != nil {
			logger.Error("failed to start metrics server",
				"err", err,
			)
			os.Exit(1)
		}
		defer metricsSvc.Stop()
	}

	if err = backend.Start(); err != nil {
		logger.Error("failed to start scheduler backend",
			"err", err,
		)
		os.Exit(1)
	}
	defer backend.Stop()

	if err = drv.Start(); err != nil {
		logger.Error("failed to start driver",
			"err", err,
		)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutdown requested")
		drv.Stop()
		<-drv.Quit()
	case <-drv.Quit():
	}
}

func init() {
	cobra.OnInitialize(cmdCommon.InitConfig)

	rootCmd.PersistentFlags().AddFlagSet(cmdCommon.RootFlags)

	rootFlags.String(CfgSchedulerBackend, "remote", "scheduler backend (remote or mock)")
	rootFlags.String(CfgSchedulerAddress, "/tmp/puppetmaster.sock", "scheduler portal socket path")
	rootFlags.Bool(CfgDriverWaitAll, false, "terminate once every transaction has finished")
	rootFlags.Bool(CfgDriverSummary, true, "print a completion summary table on shutdown")
	rootFlags.AddFlagSet(metrics.Flags)
	_ = viper.BindPFlags(rootFlags)
	rootCmd.Flags().AddFlagSet(rootFlags)
}
