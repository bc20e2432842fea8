// Package cli provides utility functions for command line interface applications.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// InitViperConfig loads the configuration of a command into vip: configuration file, then environment.
//
// The file is the one given by the --config flag, or cmdName.<ext> searched in the working directory,
// the system configuration directories and next to the binary. A missing file is not an error.
// Configuration keys are dash separated. Environment variables use the upper-cased command name as prefix
// and underscores in place of dashes: ASTRO_INGESTER_STORE_BUCKET sets store-bucket.
func InitViperConfig(cmdName string, cmd *cobra.Command, vip *viper.Viper) error {
	if path, err := cmd.Flags().GetString("config"); err == nil && path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName(cmdName)
		for _, dir := range configDirs(cmdName) {
			vip.AddConfigPath(dir)
		}
	}

	if err := vip.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if !errors.As(err, &e) {
			return fmt.Errorf("invalid configuration file: %w", err)
		}
		slog.Info("No configuration file.\nWe will only use the defaults, env variables or flags.", "error", e)
	} else {
		slog.Info("Using configuration file", "file", vip.ConfigFileUsed())
	}

	return bindEnv(cmdName, vip)
}

// InstallConfigFlag adds a config flag to the command.
func InstallConfigFlag(cmd *cobra.Command) *string {
	return cmd.PersistentFlags().String("config", "", "use a specific configuration file")
}

// configDirs returns the directories searched for the configuration file, by priority.
func configDirs(cmdName string) []string {
	dirs := []string{"."}
	if runtime.GOOS == "windows" {
		dirs = append(dirs, filepath.Join(os.Getenv("ProgramData"), cmdName))
	} else {
		dirs = append(dirs, "/etc/"+cmdName, "/usr/local/etc/"+cmdName)
	}

	binPath, err := os.Executable()
	if err != nil {
		slog.Warn("Failed to get current executable path, not adding it as a config dir", "error", err)
		return dirs
	}
	return append(dirs, filepath.Dir(binPath))
}

// bindEnv maps the prefixed environment variables to configuration keys.
//
// AutomaticEnv only answers explicit lookups, so every variable present is also bound for Unmarshal to see it.
// More context on https://github.com/spf13/viper/pull/1429.
func bindEnv(cmdName string, vip *viper.Viper) error {
	vip.SetEnvPrefix(cmdName)
	vip.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vip.AutomaticEnv()

	prefix := strings.ToUpper(strings.ReplaceAll(cmdName, "-", "_")) + "_"
	for _, e := range os.Environ() {
		name, _, _ := strings.Cut(e, "=")
		key, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}

		if err := vip.BindEnv(strings.ToLower(strings.ReplaceAll(key, "_", "-")), name); err != nil {
			return fmt.Errorf("could not bind environment variable %s: %w", name, err)
		}
	}
	return nil
}
