package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/homekv/cmd/util"
	"github.com/ValentinKolb/homekv/rpc/common"
	"github.com/ValentinKolb/homekv/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	log = logger.GetLogger("cmd")

	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the homekv server",
		Long:    `Start the homekv server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is HOMEKV_<flag> (e.g. HOMEKV_DATA_DIR=/var/lib/homekv)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupStoreFlags(ServeCmd)
	cmdUtil.SetupLogFlags(ServeCmd, "info")

	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for writes to tab connections"))

	key = "auto-migrate"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Migrate a store in the v1 layout to the current layout on startup"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	backend, err := cmdUtil.GetBackend()
	if err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Backend = backend
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.AutoMigrate = viper.GetBool("auto-migrate")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the homekv server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.StoreFactory(serveCmdConfig.Backend, serveCmdConfig.DataDir)()
	if err != nil {
		return fmt.Errorf("open %s store: %w", serveCmdConfig.Backend, err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Errorf("failed to close store: %v", err)
		}
	}()

	serv := server.NewServer(*serveCmdConfig, s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the v1 layout is converted once, before any tab can attach
	v1, err := serv.Service().IsStorageV1(ctx)
	if err != nil {
		return err
	}
	if v1 {
		if !serveCmdConfig.AutoMigrate {
			return fmt.Errorf("store uses the v1 layout, run 'homekv migrate' or enable --auto-migrate")
		}
		log.Infof("store uses the v1 layout, migrating")
		if err := serv.Service().MigrateStorageToV2(ctx); err != nil {
			return err
		}
	}

	return serv.Serve(ctx)
}
