package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/homekv/cmd/migrate"
	"github.com/ValentinKolb/homekv/cmd/serve"
	"github.com/ValentinKolb/homekv/cmd/settings"
	"github.com/ValentinKolb/homekv/cmd/tab"
	"github.com/spf13/cobra"
)

const (
	Version = "2.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "homekv",
		Short: "per client home data store with live tab updates",
		Long: fmt.Sprintf(`homekv (v%s)

A small, versioned key-value store keeping the home roots and their data
for every client URL, pushing each change to all attached tabs.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of homekv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("homekv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(migrate.MigrateCmd)
	RootCmd.AddCommand(settings.SettingsCommands)
	RootCmd.AddCommand(settings.RootsCmd)
	RootCmd.AddCommand(tab.TabCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
