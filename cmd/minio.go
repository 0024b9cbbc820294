package cmd

import (
	"context"
	"fmt"
	"time"

	"fortify/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioPrune  time.Duration
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "导出归档存储桶管理",
	Long:  `查看MinIO中的练习记录导出归档，支持列出文件、查看统计信息以及清理过期导出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.NewExportStore(cfg)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("MINIO_ENDPOINT 未配置, 导出归档处于禁用状态")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, store.Bucket())

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if minioPrune > 0 {
			cutoff := time.Now().Add(-minioPrune)
			deleted, err := store.DeleteOlderThan(ctx, minioPrefix, cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("已删除 %d 个早于 %s 的导出文件\n", deleted, cutoff.Format(time.RFC3339))
			return nil
		}

		objects, stats, err := store.List(ctx, minioPrefix)
		if err != nil {
			return err
		}
		if minioStats {
			fmt.Printf("文件总数: %d\n", stats.TotalObjects)
			fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
			if stats.TotalObjects > 0 {
				fmt.Printf("最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
			return nil
		}
		for _, obj := range objects {
			fmt.Printf("%-70s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("\n共 %d 个文件\n", len(objects))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "exports/", "按前缀过滤导出文件")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().DurationVar(&minioPrune, "prune-older-than", 0, "删除早于该时长的导出文件, 例如 168h")

	minioCmd.Example = `  # 列出所有导出
  fortify minio

  # 某个用户的导出
  fortify minio -p "exports/42/"

  # 显示存储桶统计信息
  fortify minio -s

  # 清理一周前的导出
  fortify minio --prune-older-than 168h`
}
