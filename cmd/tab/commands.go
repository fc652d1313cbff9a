package tab

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/ValentinKolb/homekv/lib/home"
	"github.com/spf13/cobra"
)

var (
	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Print the data of the current root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := tabClient.Load(cmd.Context())
			if err != nil {
				return err
			}
			return printEnvelope(env)
		},
	}
	storeCmd = &cobra.Command{
		Use:   "store [json]",
		Short: "Merge a JSON object into the data of the current root",
		Long:  `Merge a JSON object into the data of the current root. If the object contains home.location, that root becomes the current root, e.g. '{"home":{"location":"https://node.example","nodeName":"node"}}'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data map[string]json.RawMessage
			if err := json.Unmarshal([]byte(args[0]), &data); err != nil {
				return fmt.Errorf("data must be a JSON object: %w", err)
			}
			if err := tabClient.Store(cmd.Context(), data); err != nil {
				return err
			}
			return printBroadcast()
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [location]",
		Short: "Delete a root and its data (default: the current root)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := ""
			if len(args) == 1 {
				location = args[0]
			}
			ok, err := tabClient.Delete(cmd.Context(), location)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("delete dropped: the current root is not registered")
				return nil
			}
			return printBroadcast()
		},
	}
	switchCmd = &cobra.Command{
		Use:   "switch [location]",
		Short: "Make a known root the current root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tabClient.Switch(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printBroadcast()
		},
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print every broadcast received by this tab until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Printf("attached as tab %s\n", tabClient.TabID())

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			defer signal.Stop(interrupt)

			for {
				select {
				case env, ok := <-tabClient.Envelopes():
					if !ok {
						return fmt.Errorf("connection closed")
					}
					if err := printEnvelope(env); err != nil {
						return err
					}
				case <-interrupt:
					return nil
				}
			}
		},
	}
)

// printBroadcast prints the broadcast caused by the last request.
// The broadcast always arrives before the reply, so it is already buffered.
func printBroadcast() error {
	select {
	case env, ok := <-tabClient.Envelopes():
		if !ok {
			return fmt.Errorf("connection closed")
		}
		return printEnvelope(env)
	default:
		fmt.Println("ok")
		return nil
	}
}

func printEnvelope(env home.Envelope) error {
	encoded, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
