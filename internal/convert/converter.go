// Пакет convert — шлюз конвертации файлов в PDF.
//
// Converter — единая способность "исходный файл → PDF". Конкретные
// варианты (изображения, офисные документы, простой текст, passthrough
// для готовых PDF) — закрытый набор реализаций. Диспетчеризация по
// нормализованному расширению через таблицу подстановки: добавление
// формата — это один новый вариант, точки вызова не меняются.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// ErrUnsupportedFormat возвращается, когда расширение не сопоставлено
// ни одному варианту конвертера. Проверяется до любой записи на диск.
var ErrUnsupportedFormat = errors.New("формат файла не поддерживается")

// ConversionError — ошибка работы конкретного конвертера.
// Детали причины наружу не отдаются, только логируются.
type ConversionError struct {
	// Converter — имя варианта конвертера
	Converter string
	// Err — исходная причина
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("конвертер %s: %v", e.Converter, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Converter — способность конвертации одного семейства форматов.
// Convert записывает ровно один новый файл (PDF) в outDir и возвращает
// его путь. Исходный файл не изменяется.
type Converter interface {
	// Convert конвертирует srcPath в PDF внутри outDir.
	Convert(ctx context.Context, srcPath, outDir string) (string, error)
	// Extensions возвращает обслуживаемые расширения (без точки, lowercase).
	Extensions() []string
	// Name возвращает имя варианта для логов и ошибок.
	Name() string
}

// Options — параметры создания шлюза.
type Options struct {
	// SofficeBin — бинарь LibreOffice для офисных форматов
	SofficeBin string
	// MagickBin — бинарь ImageMagick для изображений
	MagickBin string
}

// Gateway — шлюз конвертации: таблица расширение → вариант конвертера.
type Gateway struct {
	byExt  map[string]Converter
	logger *slog.Logger
}

// NewGateway создаёт шлюз со стандартным набором вариантов.
func NewGateway(opts Options, logger *slog.Logger) *Gateway {
	return newGateway(logger,
		newImageConverter(opts.MagickBin),
		newOfficeConverter(opts.SofficeBin),
		newTextConverter(),
		newPassthroughConverter(),
	)
}

// newGateway строит таблицу диспетчеризации из произвольного набора
// вариантов. Используется в тестах для подстановки фейковых конвертеров.
func newGateway(logger *slog.Logger, variants ...Converter) *Gateway {
	byExt := make(map[string]Converter)
	for _, v := range variants {
		for _, ext := range v.Extensions() {
			byExt[ext] = v
		}
	}
	return &Gateway{
		byExt:  byExt,
		logger: logger.With(slog.String("component", "convert_gateway")),
	}
}

// NormalizeExt приводит расширение к каноническому виду таблицы:
// без ведущей точки, lowercase.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Supports проверяет, обслуживается ли расширение (без учёта регистра).
func (g *Gateway) Supports(ext string) bool {
	_, ok := g.byExt[NormalizeExt(ext)]
	return ok
}

// SupportedExtensions возвращает отсортированный список всех
// обслуживаемых расширений. Используется в сообщениях валидации.
func (g *Gateway) SupportedExtensions() []string {
	exts := make([]string, 0, len(g.byExt))
	for ext := range g.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Convert диспетчеризует srcPath в вариант по declaredExt и возвращает
// путь к готовому PDF внутри outDir.
//
// Ошибки: ErrUnsupportedFormat, если расширение неизвестно;
// *ConversionError, если вариант не справился. Отмена ctx прерывает
// работу внешних конвертеров.
func (g *Gateway) Convert(ctx context.Context, srcPath, declaredExt, outDir string) (string, error) {
	conv, ok := g.byExt[NormalizeExt(declaredExt)]
	if !ok {
		return "", ErrUnsupportedFormat
	}

	outPath, err := conv.Convert(ctx, srcPath, outDir)
	if err != nil {
		g.logger.Error("Конвертация не удалась",
			slog.String("converter", conv.Name()),
			slog.String("src", srcPath),
			slog.String("error", err.Error()),
		)
		return "", &ConversionError{Converter: conv.Name(), Err: err}
	}

	g.logger.Debug("Конвертация выполнена",
		slog.String("converter", conv.Name()),
		slog.String("out", outPath),
	)
	return outPath, nil
}
