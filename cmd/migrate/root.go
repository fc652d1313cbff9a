package migrate

import (
	"fmt"

	"github.com/ValentinKolb/homekv/cmd/util"
	"github.com/ValentinKolb/homekv/lib/home"
	"github.com/ValentinKolb/homekv/lib/lockmgr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// MigrateCmd converts a store in the v1 layout
	MigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the backing store to the current layout",
		Long: util.WrapString(`Convert a backing store in the single root v1 layout (records "settings" and "clientData") to the current layout. ` +
			`The store is opened directly, so the server must not be running. Stores already in the current layout are left untouched.`),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			return util.InitLogging()
		},
		RunE: run,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(MigrateCmd)
	util.SetupLogFlags(MigrateCmd, "warn")

	key := "check"
	MigrateCmd.Flags().Bool(key, false, util.WrapString("Only report whether a migration is needed"))
}

func run(cmd *cobra.Command, _ []string) error {
	s, err := util.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	svc := home.NewService(s, lockmgr.NewLockManager(), nil)

	v1, err := svc.IsStorageV1(ctx)
	if err != nil {
		return err
	}
	if !v1 {
		fmt.Println("store is up to date")
		return nil
	}
	if viper.GetBool("check") {
		fmt.Println("store uses the v1 layout, migration needed")
		return nil
	}

	if err := svc.MigrateStorageToV2(ctx); err != nil {
		return err
	}
	fmt.Println("migrated successfully")
	return nil
}
