// office.go — конвертер офисных документов в PDF через LibreOffice.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
)

// officeConverter — вариант для офисных форматов (legacy и OOXML).
// Вызывает внешний процесс LibreOffice в headless-режиме:
// soffice --headless --convert-to pdf --outdir {outDir} {src}.
type officeConverter struct {
	bin string
}

func newOfficeConverter(bin string) *officeConverter {
	return &officeConverter{bin: bin}
}

func (c *officeConverter) Name() string {
	return "office"
}

func (c *officeConverter) Extensions() []string {
	return []string{"doc", "docx", "xls", "xlsx", "ppt", "pptx"}
}

// Convert запускает LibreOffice и возвращает путь к готовому PDF.
// LibreOffice сам именует результат: {basename}.pdf внутри outDir.
func (c *officeConverter) Convert(ctx context.Context, srcPath, outDir string) (string, error) {
	task := execute.ExecTask{
		Command: c.bin,
		Args: []string{
			"--headless",
			"--norestore",
			"--convert-to", "pdf",
			"--outdir", outDir,
			srcPath,
		},
	}

	res, err := task.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("ошибка запуска %s: %w", c.bin, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s завершился с кодом %d: %s", c.bin, res.ExitCode, res.Stderr)
	}

	base := filepath.Base(srcPath)
	outName := strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
	outPath := filepath.Join(outDir, outName)

	// LibreOffice может завершиться с нулевым кодом, не создав файл
	// (например, повреждённый вход) — проверяем явно.
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("результат конвертации не создан: %s", res.Stderr)
	}
	return outPath, nil
}
