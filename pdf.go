package historyquiz

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/signintech/gopdf"
)

// Page geometry in millimetres (A4 portrait).
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	pageMargin   = 20.0
	contentWidth = pageWidth - pageMargin*2
	footerY      = 287.0
	fontFamily   = "NanumGothic"
)

// Font files looked up in the font directory.
const (
	RegularFontFile = "NanumGothic-Regular.ttf"
	BoldFontFile    = "NanumGothic-Bold.ttf"
)

// fonts are loaded once per process and shared by every document
var fonts struct {
	mu      sync.Mutex
	loaded  bool
	regular []byte
	bold    []byte
}

// InitFonts reads the Korean TTF fonts from dir. Once it has succeeded,
// later calls return immediately regardless of dir.
func InitFonts(dir string) error {
	fonts.mu.Lock()
	defer fonts.mu.Unlock()

	if fonts.loaded {
		return nil
	}

	regular, err := os.ReadFile(filepath.Join(dir, RegularFontFile))
	if err != nil {
		return fmt.Errorf("failed to read regular font: %w", err)
	}
	bold, err := os.ReadFile(filepath.Join(dir, BoldFontFile))
	if err != nil {
		return fmt.Errorf("failed to read bold font: %w", err)
	}

	fonts.regular, fonts.bold, fonts.loaded = regular, bold, true
	logger.Debug().Str("dir", dir).Msg("PDF fonts loaded")
	return nil
}

func fontData() (regular, bold []byte, ok bool) {
	fonts.mu.Lock()
	defer fonts.mu.Unlock()
	return fonts.regular, fonts.bold, fonts.loaded
}

// Document is one rendered PDF
type Document struct {
	Name string
	Data []byte
}

// PDFExporter renders question and answer sheets
type PDFExporter struct {
	FontDir string
	now     func() time.Time
}

// NewPDFExporter creates an exporter reading fonts from fontDir
func NewPDFExporter(fontDir string) *PDFExporter {
	return &PDFExporter{FontDir: fontDir, now: time.Now}
}

// QuestionSheet renders the questions with blank answer areas.
func (e *PDFExporter) QuestionSheet(questions []Question, cfg QuizConfig) ([]byte, error) {
	r, err := e.newRenderer()
	if err != nil {
		return nil, err
	}
	r.questionPages(questions, cfg, e.now())
	r.footers(1, r.pdf.GetNumberOfPages(), func(int) string { return cfg.Title })
	return r.bytes()
}

// AnswerSheet renders the answer grid followed by detailed explanations.
func (e *PDFExporter) AnswerSheet(questions []Question, cfg QuizConfig) ([]byte, error) {
	r, err := e.newRenderer()
	if err != nil {
		return nil, err
	}
	gridPages := r.answerPages(questions, cfg)
	r.footers(1, r.pdf.GetNumberOfPages(), answerFooter(1, gridPages))
	return r.bytes()
}

// Bundle renders the documents selected by the export flags of cfg:
// the question sheet always, the answer sheet when IncludeAnswerSheet is set,
// either as a second document or appended to the first.
func (e *PDFExporter) Bundle(questions []Question, cfg QuizConfig) ([]Document, error) {
	if !cfg.IncludeAnswerSheet || cfg.SeparateAnswerSheet {
		qs, err := e.QuestionSheet(questions, cfg)
		if err != nil {
			return nil, err
		}
		docs := []Document{{Name: cfg.Title + "_문제지.pdf", Data: qs}}
		if !cfg.IncludeAnswerSheet {
			return docs, nil
		}
		as, err := e.AnswerSheet(questions, cfg)
		if err != nil {
			return nil, err
		}
		return append(docs, Document{Name: cfg.Title + "_답안지.pdf", Data: as}), nil
	}

	r, err := e.newRenderer()
	if err != nil {
		return nil, err
	}
	r.questionPages(questions, cfg, e.now())
	questionPages := r.pdf.GetNumberOfPages()
	gridPages := r.answerPages(questions, cfg)
	total := r.pdf.GetNumberOfPages()

	r.footers(1, questionPages, func(int) string { return cfg.Title })
	r.footers(questionPages+1, total, answerFooter(questionPages+1, gridPages))

	data, err := r.bytes()
	if err != nil {
		return nil, err
	}
	return []Document{{Name: cfg.Title + ".pdf", Data: data}}, nil
}

func answerFooter(firstPage, gridPages int) func(int) string {
	return func(page int) string {
		if page < firstPage+gridPages {
			return "기본 답안"
		}
		return "상세 해설"
	}
}

// renderer wraps a gopdf document and remembers the first drawing error
type renderer struct {
	pdf *gopdf.GoPdf
	y   float64
	err error
}

func (e *PDFExporter) newRenderer() (*renderer, error) {
	if err := InitFonts(e.FontDir); err != nil {
		return nil, err
	}
	regular, bold, _ := fontData()

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: pageWidth, H: pageHeight}, Unit: gopdf.UnitMM})
	if err := pdf.AddTTFFontData(fontFamily, regular); err != nil {
		return nil, fmt.Errorf("failed to add regular font: %w", err)
	}
	if err := pdf.AddTTFFontDataWithOption(fontFamily, bold, gopdf.TtfOption{Style: gopdf.Bold}); err != nil {
		return nil, fmt.Errorf("failed to add bold font: %w", err)
	}
	return &renderer{pdf: pdf}, nil
}

func (r *renderer) setFont(bold bool, size float64) {
	if r.err != nil {
		return
	}
	style := ""
	if bold {
		style = "B"
	}
	r.err = r.pdf.SetFont(fontFamily, style, size)
}

func (r *renderer) text(x, y float64, s string) {
	if r.err != nil || s == "" {
		return
	}
	r.pdf.SetXY(x, y)
	r.err = r.pdf.Cell(nil, s)
}

func (r *renderer) centered(y float64, s string) {
	if r.err != nil || s == "" {
		return
	}
	r.pdf.SetXY(0, y)
	r.err = r.pdf.CellWithOption(&gopdf.Rect{W: pageWidth, H: 6}, s, gopdf.CellOption{Align: gopdf.Center | gopdf.Top})
}

func (r *renderer) rule(y float64, width float64, gray uint8) {
	r.pdf.SetStrokeColor(gray, gray, gray)
	r.pdf.SetLineWidth(width)
	r.pdf.Line(pageMargin, y, pageWidth-pageMargin, y)
}

// wrap splits s into lines no wider than width
func (r *renderer) wrap(s string, width float64) []string {
	if s == "" || r.err != nil {
		return nil
	}
	lines, err := r.pdf.SplitText(s, width)
	if err != nil {
		return []string{s}
	}
	return lines
}

func (r *renderer) lines(x float64, lines []string) {
	for _, l := range lines {
		r.text(x, r.y, l)
		r.y += 5
	}
}

func (r *renderer) header(title string) {
	r.pdf.AddPage()
	r.y = pageMargin
	r.pdf.SetTextColor(0, 0, 0)
	r.setFont(true, 18)
	r.centered(r.y, title)
	r.y += 10
	r.rule(r.y, 0.5, 51)
	r.y += 15
}

func (r *renderer) questionPages(questions []Question, cfg QuizConfig, now time.Time) {
	r.pdf.AddPage()
	r.y = pageMargin

	r.pdf.SetTextColor(0, 0, 0)
	r.setFont(true, 18)
	r.centered(r.y, cfg.Title)
	r.y += 8

	r.setFont(false, 10)
	r.centered(r.y, fmt.Sprintf("총 %d문항 | %s", len(questions), now.Format("2006. 1. 2.")))
	r.y += 6
	r.rule(r.y, 0.5, 51)
	r.y += 10

	for i, q := range questions {
		if r.y > 270 {
			r.pdf.AddPage()
			r.y = pageMargin
		}

		r.setFont(true, 11)
		r.text(pageMargin, r.y, fmt.Sprintf("%d.", i+1))
		r.setFont(false, 9)
		r.text(pageMargin+8, r.y, fmt.Sprintf("[%s | %s]", EraLabel(q.Era), DifficultyLabel(q.Difficulty)))
		r.y += 6

		r.setFont(false, 11)
		r.lines(pageMargin+5, r.wrap(q.Content, contentWidth-10))
		r.y += 3

		switch {
		case q.Type == TypeMultipleChoice && len(q.Options) > 0:
			for j, opt := range q.Options {
				r.text(pageMargin+10, r.y, OptionLabel(j))
				optLines := r.wrap(opt, contentWidth-20)
				if len(optLines) == 0 {
					r.y += 5
				}
				r.lines(pageMargin+18, optLines)
				r.y += 2
			}
		case q.Type == TypeOX:
			r.text(pageMargin+10, r.y, symbolO+" (O)          "+symbolX+" (X)")
			r.y += 8
		default:
			r.pdf.SetStrokeColor(200, 200, 200)
			r.pdf.SetLineWidth(0.3)
			r.pdf.Line(pageMargin+10, r.y+5, pageMargin+100, r.y+5)
			r.y += 8
		}

		r.y += 5
	}
}

// answerPages draws the answer grid and the explanations and returns how
// many pages the grid used.
func (r *renderer) answerPages(questions []Question, cfg QuizConfig) int {
	const (
		cols      = 5
		rowHeight = 12.0
	)
	colWidth := contentWidth / cols

	r.header(cfg.Title + " - 기본 답안")
	start := r.pdf.GetNumberOfPages()
	top := r.y

	for i, q := range questions {
		col := i % cols
		if col == 0 && i > 0 {
			top += rowHeight
			if top+rowHeight > 270 {
				r.pdf.AddPage()
				top = pageMargin
			}
		}
		x := pageMargin + float64(col)*colWidth

		r.pdf.SetStrokeColor(200, 200, 200)
		r.pdf.SetLineWidth(0.3)
		r.pdf.RectFromUpperLeftWithStyle(x, top, colWidth, rowHeight, "D")

		r.setFont(false, 9)
		r.pdf.SetTextColor(102, 102, 102)
		r.text(x+2, top+2, fmt.Sprintf("%d", i+1))

		r.setFont(true, 12)
		r.pdf.SetTextColor(0, 102, 204)
		r.text(x+colWidth/2, top+4, DisplayAnswer(q))
	}
	gridPages := r.pdf.GetNumberOfPages() - start + 1

	r.header(cfg.Title + " - 상세 해설")
	for i, q := range questions {
		if r.y > 250 {
			r.pdf.AddPage()
			r.y = pageMargin
		}

		r.setFont(true, 12)
		r.pdf.SetTextColor(0, 102, 204)
		r.text(pageMargin, r.y, fmt.Sprintf("%d번 문제 정답: %s", i+1, q.Answer))
		r.y += 8

		r.setFont(false, 10)
		r.pdf.SetTextColor(51, 51, 51)
		r.lines(pageMargin, r.wrap(q.Explanation, contentWidth))
		r.y += 3

		if q.Source != "" {
			r.setFont(false, 9)
			r.pdf.SetTextColor(102, 102, 102)
			r.text(pageMargin, r.y, "출처: "+q.Source)
			r.y += 6
		}

		r.rule(r.y, 0.3, 238)
		r.y += 10
	}
	return gridPages
}

// footers stamps "<label> - i / N페이지" on pages [from, to]; i and N count
// within that range.
func (r *renderer) footers(from, to int, label func(page int) string) {
	total := to - from + 1
	for p := from; p <= to && r.err == nil; p++ {
		if r.err = r.pdf.SetPage(p); r.err != nil {
			break
		}
		r.setFont(false, 9)
		r.pdf.SetTextColor(153, 153, 153)
		r.centered(footerY, fmt.Sprintf("%s - %d / %d페이지", label(p), p-from+1, total))
	}
}

func (r *renderer) bytes() ([]byte, error) {
	if r.err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", r.err)
	}
	var buf bytes.Buffer
	if err := r.pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
