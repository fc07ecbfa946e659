package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rental-ooh/config"
	"rental-ooh/utils"
)

const version = "v0.1.0"

var (
	envFile    string
	strataPath string
	verbose    bool

	cfg    *config.Config
	logger *utils.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ooh",
	Short: "Rental-equivalence estimate of owner-occupied housing value",
	Long: `ooh scrapes rental listings from Lianjia, stratifies them by city tier,
floor area and dwelling age, and combines city means into provincial
estimates of the nominal owner-occupied housing (OOH) value.

Runtime settings come from .env and the environment; stratification,
weights and effective floor areas come from the strata YAML file.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile != "" {
			cfg = config.Load(envFile)
		} else {
			cfg = config.Load()
		}
		logger = utils.NewLogger()
		if verbose {
			logger.SetVerbose(true)
		}
		if strataPath == "" {
			strataPath = cfg.StrataConfigPath
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ooh %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default: .env)")
	rootCmd.PersistentFlags().StringVar(&strataPath, "strata", "", "strata YAML file (default: $STRATA_CONFIG or ./strata.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}
