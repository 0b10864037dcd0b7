// Command censoc computes seasonal death variation and age-at-death
// regressions from CenSoc CSV extracts.
//
// Usage:
//
//	censoc variation numident.csv --strata sex_age_group --format table
//	censoc regress numident.csv --income
//	censoc check dmf.csv --dataset dmf
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "censoc",
		Short:        "Seasonal mortality variation from CenSoc extracts",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(variationCmd())
	rootCmd.AddCommand(regressCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func variationCmd() *cobra.Command {
	var (
		f        filterFlags
		strata   string
		leapRule string
		format   string
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "variation [csv-path]",
		Short: "Compute per-period death variation against a centered 12-month baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVariation(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], f, variationOptions{
				strata:   strata,
				leapRule: leapRule,
				format:   format,
				workers:  workers,
			})
		},
	}

	addFilterFlags(cmd, &f)
	cmd.Flags().StringVarP(&strata, "strata", "s", "sex_age_group", "total, sex, age_group or sex_age_group")
	cmd.Flags().StringVar(&leapRule, "leap-rule", "gregorian", "gregorian or legacy")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "table, csv or json")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "categories estimated in parallel")
	return cmd
}

func regressCmd() *cobra.Command {
	var (
		f      filterFlags
		income bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "regress [csv-path]",
		Short: "Weighted OLS of age at death on state and optional wage income",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegress(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], f, income, format)
		},
	}

	addFilterFlags(cmd, &f)
	cmd.Flags().BoolVar(&income, "income", false, "include wage income as a covariate")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "table or json")
	return cmd
}

func checkCmd() *cobra.Command {
	var (
		f      filterFlags
		strata string
	)

	cmd := &cobra.Command{
		Use:   "check [csv-path]",
		Short: "Report parse failures, coverage and months without records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.OutOrStdout(), args[0], f, strata)
		},
	}

	addFilterFlags(cmd, &f)
	cmd.Flags().StringVarP(&strata, "strata", "s", "sex_age_group", "total, sex, age_group or sex_age_group")
	return cmd
}
