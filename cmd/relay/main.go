package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"kline-relay/src/config"
	pb "kline-relay/src/grpc_control"
	"kline-relay/src/logger"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	configPath   string
	envFile      string
	refreshPairs bool
)

var rootCmd = &cobra.Command{
	Use:   "kline-relay",
	Short: "Binance kline relay",
	Long: `kline-relay keeps a single upstream Binance kline stream open for the
union of symbols its websocket clients ask for, and forwards every update to
the clients that subscribed to that symbol.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay, REST API, gRPC control and metrics listeners",
	RunE:  runServe,
}

var pairsCmd = &cobra.Command{
	Use:   "pairs [query]",
	Short: "List trading pairs, optionally filtered by a search query",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPairs,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of a running relay over gRPC",
	RunE:  runStatus,
}

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Ask a running relay to reopen its upstream stream",
	RunE:  runResync,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/default.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with credentials")
	pairsCmd.Flags().BoolVar(&refreshPairs, "refresh", false, "fetch the listing from Binance even if the cache is fresh")
	rootCmd.AddCommand(serveCmd, pairsCmd, statusCmd, resyncCmd)
}

// -----------------------------------------------------------------------------

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewConfig(configPath, envFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------

func runPairs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appLogger := logger.NewLogger(cfg, cfg.Name)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db := setupDatabase(ctx, cfg, appLogger)
	if db != nil {
		defer db.Close()
	}
	networkManager := setupNetwork(cfg)
	sources := setupDataSources(cfg, networkManager)
	pairs := setupCatalog(cfg, sources.rest, db)

	if refreshPairs {
		n, err := pairs.Refresh(ctx)
		if err != nil {
			return err
		}
		appLogger.Info("Refreshed %d exchange symbols", n)
	}

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	list, err := pairs.Pairs(ctx, query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range list {
		fmt.Fprintf(out, "%-12s %s\n", p.Value, p.Label)
	}
	return nil
}

// -----------------------------------------------------------------------------

func runStatus(cmd *cobra.Command, _ []string) error {
	return callControl(cmd, func(ctx context.Context, client *pb.RelayControlClient) (interface{}, error) {
		st, err := client.GetStatus(ctx)
		if err != nil {
			return nil, err
		}
		return st.AsMap(), nil
	})
}

func runResync(cmd *cobra.Command, _ []string) error {
	return callControl(cmd, func(ctx context.Context, client *pb.RelayControlClient) (interface{}, error) {
		resp, err := client.Resync(ctx)
		if err != nil {
			return nil, err
		}
		return resp.AsMap(), nil
	})
}

// callControl dials the control service of a running relay and prints the
// result as indented JSON.
func callControl(cmd *cobra.Command, call func(context.Context, *pb.RelayControlClient) (interface{}, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	host := cfg.GrpcHost
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", host, grpcPort(cfg))

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	result, err := call(ctx, pb.NewRelayControlClient(conn))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func grpcPort(cfg *config.Config) int {
	if cfg.GrpcPort == 0 {
		return 50051 // Default fallback
	}
	return cfg.GrpcPort
}
