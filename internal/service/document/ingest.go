package document

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/metrics"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("no text could be extracted from the document")
)

// DefaultMaxChars 是默认的文档字符上限
const DefaultMaxChars = 20000

// Document 上传文件提取出的纯文本
type Document struct {
	FileName  string   `json:"fileName"`
	Content   string   `json:"-"`
	Chars     int      `json:"chars"`
	Pages     int      `json:"pages"`
	Truncated bool     `json:"truncated"`
	Notices   []string `json:"notices,omitempty"`
}

// TruncationNotice 告知用户文档被截断
func TruncationNotice(fileName string, maxChars int) string {
	return fmt.Sprintf("Lưu ý: Tài liệu \"%s\" quá dài, chỉ %d ký tự đầu tiên được sử dụng.", fileName, maxChars)
}

// Option 自定义 Ingester
type Option func(*Ingester)

// WithParser 为扩展名注册解析器，扩展名含点号，例如 ".pdf"
func WithParser(ext string, p einoparser.Parser) Option {
	return func(i *Ingester) { i.parsers[strings.ToLower(ext)] = p }
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(i *Ingester) { i.logger = logger }
}

// Ingester 按扩展名选择解析器并提取文本
type Ingester struct {
	maxChars int
	parsers  map[string]einoparser.Parser
	logger   zerolog.Logger
}

// NewIngester 创建 Ingester，PDF 按页解析，DOCX 整体解析，TXT/MD 直接读取
func NewIngester(ctx context.Context, maxChars int, opts ...Option) (*Ingester, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	if err != nil {
		return nil, errors.Wrap(err, "document: create pdf parser")
	}
	docxParser, err := docx.NewDocxParser(ctx, &docx.Config{
		ToSections:     false,
		IncludeHeaders: true,
		IncludeTables:  true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "document: create docx parser")
	}

	i := &Ingester{
		maxChars: maxChars,
		parsers: map[string]einoparser.Parser{
			".pdf":  pdfParser,
			".docx": docxParser,
			".txt":  textParser{},
			".md":   textParser{},
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// MaxChars 返回字符上限
func (i *Ingester) MaxChars() int {
	return i.maxChars
}

// Supported 判断文件类型是否可解析
func (i *Ingester) Supported(fileName string) bool {
	_, ok := i.parsers[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// Ingest 提取文件文本，超过上限时截断并附带一条提示
func (i *Ingester) Ingest(ctx context.Context, fileName string, r io.Reader) (Document, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	p, ok := i.parsers[ext]
	if !ok {
		metrics.DocumentsIngested.WithLabelValues("rejected").Inc()
		return Document{}, errors.Wrapf(ErrUnsupportedType, "document: %q", ext)
	}

	docs, err := p.Parse(ctx, r, einoparser.WithURI(fileName))
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("rejected").Inc()
		return Document{}, errors.Wrapf(err, "document: parse %s", fileName)
	}

	content := joinPages(docs)
	if strings.TrimSpace(content) == "" {
		metrics.DocumentsIngested.WithLabelValues("rejected").Inc()
		return Document{}, errors.Wrapf(ErrEmptyDocument, "document: %s", fileName)
	}

	doc := Document{
		FileName: fileName,
		Content:  content,
		Pages:    len(docs),
	}
	if runes := []rune(content); len(runes) > i.maxChars {
		doc.Content = string(runes[:i.maxChars])
		doc.Truncated = true
		doc.Notices = append(doc.Notices, TruncationNotice(fileName, i.maxChars))
	}
	doc.Chars = len([]rune(doc.Content))

	result := "ok"
	if doc.Truncated {
		result = "truncated"
	}
	metrics.DocumentsIngested.WithLabelValues(result).Inc()
	i.logger.Info().
		Str("file", fileName).
		Int("pages", doc.Pages).
		Int("chars", doc.Chars).
		Bool("truncated", doc.Truncated).
		Msg("[document] ingested")
	return doc, nil
}

// joinPages 按页拼接，页之间空一行
func joinPages(docs []*schema.Document) string {
	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		if text := strings.TrimSpace(d.Content); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n")
}

// textParser 纯文本解析器
type textParser struct{}

func (textParser) Parse(_ context.Context, reader io.Reader, _ ...einoparser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "read text")
	}
	if len(content) == 0 {
		return []*schema.Document{}, nil
	}
	return []*schema.Document{{Content: string(content), MetaData: map[string]any{}}}, nil
}
