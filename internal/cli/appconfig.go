package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	flagOnMessage  = "Feature flag is on. Running code."
	flagOffMessage = "Feature flag is off. Not running code."
)

func getAppConfigCmd(a *app) *cobra.Command {
	var flagName string

	cmd := &cobra.Command{
		Use:   "appconfig",
		Short: "Fetch the configuration once and report whether a flag is on",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Info("Running script", "name", cmd.Name())
			options := a.options()
			options.IPCountryOptions.Disabled = true
			options.UAParserOptions.Disabled = true

			client, err := a.newClient(cmd.Context(), options)
			if err != nil {
				return err
			}
			defer client.Shutdown()

			a.logger.Debug("received config data", "flags", client.Document().Names())
			flag, err := client.GetFlag(flagName)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), onOffMessage(flag.Enabled))
			return nil
		},
	}
	cmd.Flags().StringVar(&flagName, "flag", "myNewFeature", "feature flag name")
	return cmd
}

func onOffMessage(enabled bool) string {
	if enabled {
		return flagOnMessage
	}
	return flagOffMessage
}
