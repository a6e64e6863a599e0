/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"github.com/rotblauer/catfuse/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"log/slog"
	"os"
	"strings"
)

var cfgFile string
var optVerbosity int
var optLogJSON bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catfuse",
	Short: "Fuse GPS fixes with inertial samples",
	Long: `catfuse estimates position by fusing intermittent GPS fixes with a
steady stream of accelerometer and orientation samples in a Kalman filter.

Corrections are emitted every --rate accepted fixes; between them, predictions
are emitted once enough inertial steps have passed since the last fix.

Flags may also be given in a config file (--config, default
$HOME/.catfuse/config.yaml) or as CATFUSE_ environment variables,
e.g. CATFUSE_RATE=5.
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.catfuse/config.yaml)")
	pFlags.StringVar(&params.DatadirRoot, "datadir", params.DatadirRoot, "Root data directory")
	pFlags.IntVar(&optVerbosity, "verbosity", int(slog.LevelInfo), "Log level (-4 debug, 0 info, 4 warn, 8 error)")
	pFlags.BoolVar(&optLogJSON, "log-json", false, "Log as JSON")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(params.DatadirRoot)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("CATFUSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Failed to read config file:", err)
		os.Exit(1)
	}
}

// applyConfig fills flags not given on the command line from the config file
// or environment.
func applyConfig(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || f.Name == "config" || !viper.IsSet(f.Name) {
			return
		}
		if e := cmd.Flags().Set(f.Name, viper.GetString(f.Name)); e != nil {
			err = fmt.Errorf("config %s: %w", f.Name, e)
		}
	})
	return err
}

func setDefaultSlog(cmd *cobra.Command, args []string) {
	opts := &slog.HandlerOptions{Level: slog.Level(optVerbosity)}
	var handler slog.Handler
	if optLogJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler).With("cmd", cmd.Name()))
	slog.Debug("Args", "args", args, "datadir", params.DatadirRoot)
}
