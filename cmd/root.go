package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stellar",
		Short:         "Stellar site server and visitor session tools",
		Long:          "stellar serves the Stellar marketing site with its messenger widget, and inspects or edits the visitor sessions the site keeps.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return app.Close()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(app),
		newSessionCmd(app),
		newPageNameCmd(),
		newProbeCmd(app),
	)

	return rootCmd
}
