/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"runtime/pprof"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Profiling Parameters
var (
	cpuProfile     bool
	memProfile     bool
	cpuProfileFile string
	memProfileFile string
)

var (
	cfgFile string
	cfg     Config
	logger  = logrus.StandardLogger()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stegokey",
	Short: "Hide an encryption key across an image, a video and an audio clip",
	Long: `stegokey encrypts a message, splits the key into three fragments and hides
one fragment in each carrier. Decoding refuses any carrier whose content
changed since it was encoded.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer stopProfiling()
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Profile Config Flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stegokey/config)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text or json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Profiling cli flags
	rootCmd.PersistentFlags().BoolVar(&cpuProfile, "cpu-profile", false, "write cpu profile to file")
	rootCmd.PersistentFlags().BoolVar(&memProfile, "mem-profile", false, "write memory profile to file")

	rootCmd.PersistentFlags().StringVar(&cpuProfileFile, "cpu-profile-file", "cpu.prof", "write cpu profile to file")
	rootCmd.PersistentFlags().StringVar(&memProfileFile, "mem-profile-file", "mem.prof", "write memory profile to file")
}

// setup starts profiling, then loads and validates the configuration and
// builds the logger every command shares.
func setup(cmd *cobra.Command, args []string) error {
	onStopProfiling = profilingInit()

	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	c, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	l, err := newLogger(c.Log)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	logger.WithField("config", viper.ConfigFileUsed()).Debug("configuration loaded")
	return nil
}

// profilingInit starts cpu and memory profiling if enabled.
// It returns a function to stop profiling.
func profilingInit() func() {
	// doOnStop is a list of functions to be called on stop
	var doOnStop []func()
	// stop calls all necessary functions to stop profiling
	stop := func() {
		for _, d := range doOnStop {
			if d != nil {
				d()
			}
		}
	}

	if cpuProfile {
		fmt.Fprintln(os.Stderr, "cpu profile enabled")

		// Create profiling file
		f, err := os.Create(cpuProfileFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "could not create cpu profile file")
			return stop
		}

		// Start profiling
		err = pprof.StartCPUProfile(f)
		if err != nil {
			fmt.Fprintln(os.Stderr, "could not start cpu profiling")
			return stop
		}

		// Add function to stop cpu profiling to doOnStop list
		doOnStop = append(doOnStop, func() {
			pprof.StopCPUProfile()
			_ = f.Close()
			fmt.Fprintln(os.Stderr, "cpu profile stopped")
		})
	}

	if memProfile {
		fmt.Fprintln(os.Stderr, "memory profile enabled")

		// Create profiling file
		f, err := os.Create(memProfileFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "could not create memory profile file")
			return stop
		}

		// Add function to stop memory profiling to doOnStop list
		doOnStop = append(doOnStop, func() {
			_ = pprof.WriteHeapProfile(f)
			_ = f.Close()
			fmt.Fprintln(os.Stderr, "memory profile stopped")
		})
	}

	return stop
}

// onStopProfiling is called when the cli exits
// profilingOnce makes sure it's only called once
var onStopProfiling func()
var profilingOnce sync.Once

// stopProfiling triggers _stopProfiling.
// It's safe to be called multiple times.
func stopProfiling() {
	if onStopProfiling != nil {
		profilingOnce.Do(onStopProfiling)
	}
}
