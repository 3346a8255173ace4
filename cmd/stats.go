package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statsBuyer string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print match statistics for a buyer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsBuyer == "" {
			return eris.New("--buyer is required")
		}

		env, err := initEnv(cmd.Context(), "stats")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Matches.Stats(cmd.Context(), statsBuyer)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsBuyer, "buyer", "", "buyer id")
	rootCmd.AddCommand(statsCmd)
}
