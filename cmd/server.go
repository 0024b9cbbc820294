package cmd

import (
	"fortify/logger"
	"fortify/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动Fortify服务器",
	Long:  `启动Fortify的HTTP API服务器，提供练习记录、节奏建议和练习计划接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting Fortify server...", logger.String("addr", cfg.HTTPAddress), logger.String("env", cfg.Env))
	return server.Start(cfg)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
