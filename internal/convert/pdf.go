// pdf.go — passthrough-вариант для файлов, уже являющихся PDF.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// passthroughConverter копирует готовый PDF без преобразования.
// Содержимое проверяется sniffing-ом: расширение .pdf у не-PDF
// файла — это ошибка конвертации, а не повод отдать мусор.
type passthroughConverter struct{}

func newPassthroughConverter() *passthroughConverter {
	return &passthroughConverter{}
}

func (c *passthroughConverter) Name() string {
	return "pdf-passthrough"
}

func (c *passthroughConverter) Extensions() []string {
	return []string{"pdf"}
}

// Convert проверяет, что srcPath действительно PDF, и копирует его в outDir.
func (c *passthroughConverter) Convert(ctx context.Context, srcPath, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mime, err := mimetype.DetectFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("ошибка определения типа файла: %w", err)
	}
	if !mime.Is("application/pdf") {
		return "", fmt.Errorf("содержимое не является PDF (обнаружен %s)", mime.String())
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия исходного файла: %w", err)
	}
	defer src.Close()

	outPath := filepath.Join(outDir, "out.pdf")
	dst, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла результата: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("ошибка копирования: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ошибка закрытия файла результата: %w", err)
	}

	return outPath, nil
}
