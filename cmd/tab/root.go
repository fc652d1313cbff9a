package tab

import (
	"github.com/ValentinKolb/homekv/cmd/util"
	"github.com/ValentinKolb/homekv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	tabClient *client.TabClient

	// TabCommands represents the tab command group
	TabCommands = &cobra.Command{
		Use:                "tab",
		Short:              "Attach to a running server as a tab and perform data operations",
		PersistentPreRunE:  setupTabClient,
		PersistentPostRunE: closeTabClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common client flags to the tab command
	util.SetupClientFlags(TabCommands)
	util.SetupLogFlags(TabCommands, "warn")

	// Add subcommands
	TabCommands.AddCommand(loadCmd)
	TabCommands.AddCommand(storeCmd)
	TabCommands.AddCommand(deleteCmd)
	TabCommands.AddCommand(switchCmd)
	TabCommands.AddCommand(watchCmd)
	TabCommands.AddCommand(perfTestCmd)
}

// setupTabClient attaches a new tab to the server
func setupTabClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	var err error
	tabClient, err = client.Dial(cmd.Context(), *util.GetClientConfig())
	return err
}

func closeTabClient(_ *cobra.Command, _ []string) error {
	if tabClient == nil {
		return nil
	}
	return tabClient.Close()
}
