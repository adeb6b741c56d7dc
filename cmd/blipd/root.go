package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/blipkit/blip/pkg/bliplog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

var log = bliplog.New("blipd")

var rootCmd = &cobra.Command{
	Use:   "blipd",
	Short: "A demo BLIP peer",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-dir", "", "directory for rolling log files (empty logs to stdout only)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("log.dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(listenCmd, dialCmd)
}

func initConfig() {
	viper.SetEnvPrefix("BLIP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	opts := bliplog.NewOptions()
	opts.LogDir = viper.GetString("log.dir")
	if lvl, err := zapcore.ParseLevel(viper.GetString("log.level")); err == nil {
		opts.Level = lvl
	}
	bliplog.Configure(opts)
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
