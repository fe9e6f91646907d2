package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/browsermob/agent/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Concurrent browser test agent",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("agent")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()
		viper.BindEnv("sauce.username")
		viper.BindEnv("sauce.access_key")

		viper.SetConfigName("agent.yaml")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/browsermob/")
		viper.AddConfigPath("$HOME/.config/browsermob")
		viper.AddConfigPath(".")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				log.Fatal(err)
			}
		}

		verbosity, err := cmd.Flags().GetCount("verbose")
		if err != nil {
			panic(err)
		}
		log.SetVerbosity(verbosity)
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Verbosity (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
