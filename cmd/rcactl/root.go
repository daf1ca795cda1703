package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/miradorstack/mirador-investigator/internal/api"
	"github.com/miradorstack/mirador-investigator/internal/app"
	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

var (
	configPath string
	serverAddr string
	logLevel   string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "rcactl",
	Short: "Run incident investigations and entity timelines",
	Long: `rcactl drives the investigator either in-process, using the same configuration as
rca-engine, or against a running rca-engine over gRPC with --server.`,
	SilenceUsage: true,
}

// Execute runs the root command. Interrupts cancel the running investigation, which then returns
// whatever it has gathered.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (local mode)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "Address of a running rca-engine (remote mode)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for local mode")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")

	rootCmd.AddCommand(investigateCmd)
	rootCmd.AddCommand(timelineCmd)
}

// localApp loads configuration and wires the engine in-process. Logs go to stderr.
func localApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := utils.NewLoggerTo(os.Stderr, logLevel, false)
	return app.Build(ctx, cfg, logger)
}

func remoteClient() (*api.InvestigatorClient, func() error, error) {
	conn, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", serverAddr, err)
	}
	return api.NewInvestigatorClient(conn), conn.Close, nil
}
