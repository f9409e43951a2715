package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "snsync",
		Short: "Keep a Supernote in sync with local document trees",
		Long: `snsync pushes local documents to a Supernote mounted over MTP, converting
formats the device cannot display, backs up the device's notebooks and renders
them as PDF.

Files are only copied when their modification times differ by more than ten
seconds; after each copy the timestamps are equalized, so reruns are cheap.

Examples:
  snsync run                         # backup, import, then export every pair
  snsync export ~/Documents/Math Math
  snsync backup -d                   # show what a backup would copy
  snsync inventory ~/Documents/Class # classify a tree without touching the device
  snsync watch                       # re-export pairs as they change
  snsync history                     # list recent runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/snsync/config.yaml)")
	rootCmd.PersistentFlags().BoolP("dry-run", "d", false, "report what would change without writing anything")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output, including skipped files")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().String("device-root", "", "device mount root (skips discovery)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format (pretty, plain, json, yaml, paths, null)")

	_ = viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("device_root", rootCmd.PersistentFlags().Lookup("device-root"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig binds the global flags to SNSYNC_ environment variables. The
// configuration file itself is read by config.LoadFile.
func initConfig() {
	viper.SetEnvPrefix("SNSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		return err
	}
	return nil
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
