package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ValentinKolb/homekv/cmd/util"
	"github.com/ValentinKolb/homekv/lib/home"
	"github.com/ValentinKolb/homekv/rpc/common"
	"github.com/ValentinKolb/homekv/rpc/server"
	"github.com/spf13/cobra"
)

var (
	config     *common.ClientConfig
	httpClient *http.Client

	// SettingsCommands represents the settings command group
	SettingsCommands = &cobra.Command{
		Use:               "settings",
		Short:             "Show and change the settings of a running server",
		PersistentPreRunE: setupHTTPClient,
	}

	getCmd = &cobra.Command{
		Use:   "get",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var settings home.Settings
			if err := call(cmd.Context(), http.MethodGet, "/settings", nil, &settings); err != nil {
				return err
			}
			printSettings(settings)
			return nil
		},
	}

	setCmd = &cobra.Command{
		Use:   "set",
		Short: "Replace the settings",
		Long:  util.WrapString("Replace both settings. Tabs attached before the change keep their client URL until they reconnect."),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaultClient, _ := cmd.Flags().GetBool("default-client")
			customClientURL, _ := cmd.Flags().GetString("custom-client-url")

			settings := home.Settings{DefaultClient: defaultClient, CustomClientURL: customClientURL}
			if err := call(cmd.Context(), http.MethodPut, "/settings", settings, &settings); err != nil {
				return err
			}
			fmt.Println("set successfully")
			printSettings(settings)
			return nil
		},
	}

	// RootsCmd prints the root registry of a client URL
	RootsCmd = &cobra.Command{
		Use:               "roots [clientUrl]",
		Short:             "List the roots of a client URL (default: the client URL of the settings)",
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: setupHTTPClient,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/roots"
			if len(args) == 1 {
				path += "?clientUrl=" + url.QueryEscape(args[0])
			}

			var resp server.RootsResponse
			if err := call(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}

			fmt.Printf("client: %s\n", resp.ClientURL)
			if len(resp.Roots) == 0 {
				fmt.Println("no roots")
				return nil
			}
			for _, root := range resp.Roots {
				marker := " "
				if resp.Current != nil && *resp.Current == root.URL {
					marker = "*"
				}
				name := "-"
				if root.Name != nil {
					name = *root.Name
				}
				fmt.Printf("%s %-40s %s\n", marker, root.URL, name)
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	for _, cmd := range []*cobra.Command{SettingsCommands, RootsCmd} {
		util.SetupClientFlags(cmd)
		util.SetupLogFlags(cmd, "warn")
	}

	SettingsCommands.AddCommand(getCmd)
	SettingsCommands.AddCommand(setCmd)

	key := "default-client"
	setCmd.Flags().Bool(key, true, util.WrapString("Use the default client "+home.DefaultClientURL))
	key = "custom-client-url"
	setCmd.Flags().String(key, "", util.WrapString("Client URL used when default-client is false"))
}

// setupHTTPClient reads the client configuration
func setupHTTPClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	config = util.GetClientConfig()
	httpClient = &http.Client{Timeout: time.Duration(config.TimeoutSecond) * time.Second}
	return nil
}

// baseURL converts the endpoint into the http URL of the server
func baseURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "ws://"):
		endpoint = "http://" + strings.TrimPrefix(endpoint, "ws://")
	case strings.HasPrefix(endpoint, "wss://"):
		endpoint = "https://" + strings.TrimPrefix(endpoint, "wss://")
	case !strings.Contains(endpoint, "://"):
		endpoint = "http://" + endpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

// call sends a JSON request to the server and decodes the JSON response into out
func call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL(config.Endpoint)+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, apiErr.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printSettings(settings home.Settings) {
	fmt.Printf("defaultClient:   %t\n", settings.DefaultClient)
	fmt.Printf("customClientUrl: %s\n", settings.CustomClientURL)
	fmt.Printf("clientUrl:       %s\n", settings.ClientURL())
}
