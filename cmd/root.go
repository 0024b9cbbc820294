package cmd

import (
	"fmt"
	"os"

	"fortify/config"
	"fortify/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fortify",
	Short: "Fortify tracks drum rudiment practice and suggests the next tempo.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and initialises the process logger from it.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	err := logger.InitLogger(logger.Config{
		Level:       cfg.LogLevel,
		OutputPath:  cfg.LogPath,
		MaxSize:     cfg.LogMaxSize,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAge:      cfg.LogMaxAge,
		Compress:    true,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}
