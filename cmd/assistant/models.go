package main

import (
	"fmt"

	"local-assistant/pkg/modelfs"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List model files in the models directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		models, err := modelfs.New(cfg.LLM.ModelsDir)
		if err != nil {
			return err
		}

		files, err := models.List()
		if err != nil {
			return err
		}

		if len(files) == 0 {
			color.Yellow("No %s files in %s", modelfs.Extension, models.Dir())
			return nil
		}

		color.Cyan("Models in %s", models.Dir())
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-48s %10s\n", f.Name, humanSize(f.SizeBytes))
		}
		return nil
	},
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
