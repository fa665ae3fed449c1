// Package ctl implements laundryctl, the operator command line for the
// laundry bot.
package ctl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "LAUNDRYCTL"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "laundryctl",
		Short:         "Operate and inspect the laundry bot",
		Long:          "laundryctl runs the laundry command dispatcher locally against stdin, and inspects the machine state of a running bot.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadSettings(v, configFile, cmd.Flags())
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML settings file (flags and LAUNDRYCTL_* env override it)")

	rootCmd.AddCommand(
		newConsoleCmd(v),
		newStatusCmd(v),
	)
	return rootCmd
}

// loadSettings layers flags over environment over the optional config file.
func loadSettings(v *viper.Viper, configFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	return nil
}
