package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"titus/internal/cli"
	tlog "titus/internal/log"
)

var (
	cfgFile  string
	logLevel string

	v      = viper.New()
	logger *tlog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "titusctl",
	Short:         "Shipment workbook tools for the titus dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = cli.SetupLogger(v.GetString("log_level"))
		return nil
	},
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	cli.LoadEnvFile()
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(summaryCmd, exportCmd, refreshCmd, reportsCmd)
}

// loadConfig layers flags over TITUS_* and the server's own variables over
// an optional config file.
func loadConfig() {
	v.SetEnvPrefix("TITUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("amqp_exchange", "titus")
	v.SetDefault("amqp_queue", "titus.dataset.refresh")
	for _, key := range []string{"amqp_url", "amqp_exchange", "amqp_queue", "reports_file"} {
		_ = v.BindEnv(key, "TITUS_"+strings.ToUpper(key), strings.ToUpper(key))
	}

	if cfgFile == "" {
		return
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to read config %s: %v\n", cfgFile, err)
	}
}
