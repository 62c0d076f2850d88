package convert

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// convertText прогоняет текст через textConverter и возвращает байты PDF.
func convertText(t *testing.T, content string) []byte {
	t.Helper()

	srcPath := filepath.Join(t.TempDir(), "src.txt")
	if err := os.WriteFile(srcPath, []byte(content), 0o640); err != nil {
		t.Fatalf("Ошибка создания исходного файла: %v", err)
	}

	conv := newTextConverter()
	outPath, err := conv.Convert(context.Background(), srcPath, t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка Convert: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Ошибка чтения результата: %v", err)
	}
	return data
}

func TestTextConvertProducesPDF(t *testing.T) {
	data := convertText(t, "Привет, мир!\nВторая строка.")

	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("результат не начинается с %%PDF-: %q", data[:16])
	}
	if !bytes.Contains(data, []byte("%%EOF")) {
		t.Errorf("результат не содержит %%%%EOF")
	}
}

func TestTextConvertEmptyFile(t *testing.T) {
	data := convertText(t, "")

	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("пустой вход не дал валидный PDF")
	}
	// Минимум одна страница даже для пустого файла
	if !bytes.Contains(data, []byte("/Type /Page ")) {
		t.Error("в PDF нет ни одной страницы")
	}
}

func TestTextConvertMultiPage(t *testing.T) {
	// Строк больше, чем помещается на страницу
	content := strings.Repeat("строка\n", linesPerPage+10)
	data := convertText(t, content)

	if !bytes.Contains(data, []byte("/Count 2")) {
		t.Error("ожидали 2 страницы в PDF")
	}
}

func TestLayoutLinesWrapsLong(t *testing.T) {
	long := strings.Repeat("a", maxLineChars*2+10)
	lines := layoutLines([]byte(long))

	if len(lines) != 3 {
		t.Fatalf("количество строк: хотели 3, получили %d", len(lines))
	}
	for i, line := range lines[:2] {
		if len(line) != maxLineChars {
			t.Errorf("строка %d: длина %d, хотели %d", i, len(line), maxLineChars)
		}
	}
}

func TestLayoutLinesNormalizesCRLF(t *testing.T) {
	lines := layoutLines([]byte("один\r\nдва"))

	if len(lines) != 2 {
		t.Fatalf("количество строк: хотели 2, получили %d", len(lines))
	}
	if strings.Contains(lines[0], "\r") {
		t.Error("CR не вырезан из строки")
	}
}

func TestEscapePDFString(t *testing.T) {
	got := escapePDFString(`a(b)c\d`)
	want := `a\(b\)c\\d`
	if got != want {
		t.Errorf("хотели %q, получили %q", want, got)
	}

	// Управляющие байты заменяются пробелом
	if escapePDFString("a\x07b") != "a b" {
		t.Error("управляющий байт не заменён пробелом")
	}
}

func TestPassthroughRejectsNonPDF(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(srcPath, []byte("это не PDF"), 0o640); err != nil {
		t.Fatalf("Ошибка создания файла: %v", err)
	}

	conv := newPassthroughConverter()
	_, err := conv.Convert(context.Background(), srcPath, t.TempDir())
	if err == nil {
		t.Error("не-PDF содержимое с расширением .pdf принято без ошибки")
	}
}

func TestPassthroughCopiesRealPDF(t *testing.T) {
	// Валидный PDF — результат текстового конвертера
	pdfData := convertText(t, "содержимое")

	srcPath := filepath.Join(t.TempDir(), "real.pdf")
	if err := os.WriteFile(srcPath, pdfData, 0o640); err != nil {
		t.Fatalf("Ошибка создания файла: %v", err)
	}

	conv := newPassthroughConverter()
	outPath, err := conv.Convert(context.Background(), srcPath, t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка Convert: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Ошибка чтения результата: %v", err)
	}
	if !bytes.Equal(got, pdfData) {
		t.Error("содержимое изменилось при passthrough-копировании")
	}
}
