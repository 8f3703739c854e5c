package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	flagkit "github.com/flagkit/go-sdk"
)

func getDecideCmd(a *app) *cobra.Command {
	var (
		userID    string
		flagName  string
		ipAddress string
		userAgent string
		attrs     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Decide a flag for one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Info("Running script", "name", cmd.Name())
			options := a.options()
			options.IPCountryOptions.Disabled = ipAddress == ""
			options.UAParserOptions.Disabled = userAgent == ""

			client, err := a.newClient(cmd.Context(), options)
			if err != nil {
				return err
			}
			defer client.Shutdown()

			user := flagkit.User{
				UserID:     userID,
				IPAddress:  ipAddress,
				UserAgent:  userAgent,
				Attributes: map[string]interface{}{},
			}
			for k, v := range attrs {
				user.Attributes[k] = v
			}

			decision := client.Decide(user, flagName)
			a.logger.Debug("decision",
				"flag", decision.FlagKey,
				"user", decision.UserID,
				"reason", decision.Reason,
				"attributes", decision.Attributes)
			if decision.Reason == flagkit.ReasonFlagNotFound {
				_, lookupErr := client.GetFlag(flagName)
				a.logger.Debug("flag treated as off", "flag", flagName, "reason", lookupErr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), onOffMessage(decision.Enabled))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "local_user", "user ID")
	cmd.Flags().StringVar(&flagName, "flag", "railway-demo-flag", "feature flag name")
	cmd.Flags().StringVar(&ipAddress, "ip", "", "user IP address, used to fill the country attribute")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "user agent, used to fill browser and OS attributes")
	cmd.Flags().StringToStringVar(&attrs, "attr", map[string]string{"account_label": "decide"}, "user attribute as key=value, repeatable")
	return cmd
}
