// text.go — конвертер простого текста в PDF.
// PDF собирается встроенным минимальным генератором без внешних
// процессов: моноширинный Courier, построчная вёрстка, пагинация.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Параметры вёрстки: Letter 612x792 pt, Courier 10 pt.
const (
	pageWidth    = 612
	pageHeight   = 792
	marginLeft   = 50
	marginTop    = 50
	fontSize     = 10
	leading      = 12
	maxLineChars = 85
	linesPerPage = (pageHeight - 2*marginTop) / leading
)

// textConverter — вариант для простого текста.
type textConverter struct{}

func newTextConverter() *textConverter {
	return &textConverter{}
}

func (c *textConverter) Name() string {
	return "text"
}

func (c *textConverter) Extensions() []string {
	return []string{"txt"}
}

// Convert читает текстовый файл и записывает out.pdf в outDir.
func (c *textConverter) Convert(ctx context.Context, srcPath, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения исходного файла: %w", err)
	}

	outPath := filepath.Join(outDir, "out.pdf")
	if err := os.WriteFile(outPath, buildPDF(layoutLines(data)), 0o640); err != nil {
		return "", fmt.Errorf("ошибка записи PDF: %w", err)
	}

	return outPath, nil
}

// layoutLines разбивает текст на строки вёрстки: табы раскрываются,
// длинные строки переносятся по maxLineChars.
func layoutLines(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "    ")

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if raw == "" {
			lines = append(lines, "")
			continue
		}
		for len(raw) > maxLineChars {
			lines = append(lines, raw[:maxLineChars])
			raw = raw[maxLineChars:]
		}
		lines = append(lines, raw)
	}
	return lines
}

// buildPDF собирает однофайловый PDF с построчным текстом.
// Объекты: 1 Catalog, 2 Pages, 3 Font, далее пары Page/Contents.
func buildPDF(lines []string) []byte {
	// Пагинация
	var pages [][]string
	for start := 0; start < len(lines); start += linesPerPage {
		end := start + linesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, lines[start:end])
	}
	if len(pages) == 0 {
		pages = [][]string{{""}}
	}

	var buf bytes.Buffer
	var offsets []int

	// addObj записывает объект с очередным номером, запоминая offset для xref
	addObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	addObj("<< /Type /Catalog /Pages 2 0 R >>")
	addObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), len(pages)))
	addObj("<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>")

	for i, page := range pages {
		stream := contentStream(page)
		addObj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pageWidth, pageHeight, 5+2*i))
		addObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	// xref и trailer
	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefPos)

	return buf.Bytes()
}

// contentStream собирает поток текстовых операторов одной страницы.
func contentStream(lines []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "BT\n/F1 %d Tf\n%d TL\n%d %d Td\n",
		fontSize, leading, marginLeft, pageHeight-marginTop-fontSize)
	for _, line := range lines {
		fmt.Fprintf(&sb, "(%s) Tj\nT*\n", escapePDFString(line))
	}
	sb.WriteString("ET")
	return sb.String()
}

// escapePDFString экранирует спецсимволы строкового литерала PDF.
// Управляющие байты заменяются пробелом.
func escapePDFString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '\\':
			sb.WriteString(`\\`)
		case b == '(':
			sb.WriteString(`\(`)
		case b == ')':
			sb.WriteString(`\)`)
		case b < 0x20:
			sb.WriteByte(' ')
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String()
}
