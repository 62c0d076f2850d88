// image.go — конвертер изображений в PDF через ImageMagick.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	execute "github.com/alexellis/go-execute/v2"
)

// imageConverter — вариант для растровых изображений.
// Вызывает внешний процесс ImageMagick: magick {src} {out.pdf}.
type imageConverter struct {
	bin string
}

func newImageConverter(bin string) *imageConverter {
	return &imageConverter{bin: bin}
}

func (c *imageConverter) Name() string {
	return "image"
}

func (c *imageConverter) Extensions() []string {
	return []string{"jpg", "jpeg", "png", "gif", "bmp"}
}

// Convert запускает ImageMagick и возвращает путь к готовому PDF.
// Для многокадровых форматов (gif) берётся первый кадр.
func (c *imageConverter) Convert(ctx context.Context, srcPath, outDir string) (string, error) {
	outPath := filepath.Join(outDir, "out.pdf")

	task := execute.ExecTask{
		Command: c.bin,
		Args:    []string{srcPath + "[0]", outPath},
	}

	res, err := task.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("ошибка запуска %s: %w", c.bin, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s завершился с кодом %d: %s", c.bin, res.ExitCode, res.Stderr)
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("результат конвертации не создан: %w", err)
	}
	return outPath, nil
}
