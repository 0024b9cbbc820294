package cmd

import (
	"context"
	"fmt"

	"fortify/core/catalog"
	"fortify/db"
	"fortify/logger"
	"fortify/repository"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "写入标准rudiment目录",
	Long:  `幂等地写入40个标准鼓点练习(PAS rudiments)，已存在的条目会被跳过。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		gdb, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		if err := db.Migrate(gdb); err != nil {
			return err
		}
		created, err := catalog.NewService(repository.NewGormRudimentRepository(gdb)).SeedStandard(context.Background())
		if err != nil {
			return fmt.Errorf("写入标准rudiment失败: %w", err)
		}
		fmt.Printf("标准rudiment已就绪, 新增 %d 条\n", created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
