// Package chunker splits raw document text into ordered retrievable pieces
// using type-specific structural rules with a sliding-window fallback.
package chunker

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Piece is one chunk of text produced by the chunker, before persistence.
type Piece struct {
	Text     string
	Metadata map[string]string
}

// Chunker splits document content according to per-type policies.
type Chunker struct {
	tenantOverrides map[string]Partial
	typeOverrides   map[DocType]Partial
	minChunkSize    int
	logger          *zap.Logger
}

// Config holds chunker construction settings.
type Config struct {
	// MinChunkSize is the minimum trimmed piece length kept after filtering.
	MinChunkSize int
	// TypeOverrides replace built-in per-type defaults.
	TypeOverrides map[DocType]Partial
	// TenantOverrides apply per-tenant policy overlays.
	TenantOverrides map[string]Partial
}

// New creates a Chunker.
func New(cfg Config, logger *zap.Logger) *Chunker {
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = DefaultMinChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{
		tenantOverrides: cfg.TenantOverrides,
		typeOverrides:   cfg.TypeOverrides,
		minChunkSize:    cfg.MinChunkSize,
		logger:          logger,
	}
}

// Chunk splits content into ordered pieces. Empty input yields an empty list,
// not an error. A structural rule that fails or produces nothing degrades to
// fixed-size sliding-window chunking.
func (c *Chunker) Chunk(content string, docType DocType, tenant string, call Partial) []Piece {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	policy := c.resolve(docType, tenant, call)

	units, rule := c.structuralUnits(content, docType, policy)
	if len(units) == 0 {
		rule = "window"
		units = []string{content}
	}

	texts := packUnits(units, policy)
	pieces := make([]Piece, 0, len(texts))
	for _, t := range texts {
		if len([]rune(strings.TrimSpace(t))) < c.minChunkSize {
			continue
		}
		pieces = append(pieces, Piece{
			Text: t,
			Metadata: map[string]string{
				"type": string(docType),
				"rule": rule,
			},
		})
	}

	// Whole-document fallback: everything was filtered out but the input is
	// non-empty. Emit the trimmed document as a single piece, exempt from the
	// minimum-size filter.
	if len(pieces) == 0 {
		c.logger.Debug("chunking produced no pieces, falling back to single chunk",
			zap.String("type", string(docType)),
			zap.Int("content_len", len(content)))
		return []Piece{{
			Text: strings.TrimSpace(content),
			Metadata: map[string]string{
				"type":     string(docType),
				"rule":     "fallback",
				"fallback": "true",
			},
		}}
	}

	for i, p := range pieces {
		p.Metadata["index"] = strconv.Itoa(i)
	}
	return pieces
}

func (c *Chunker) resolve(docType DocType, tenant string, call Partial) Policy {
	typeDefault := DefaultPolicy(docType)
	if o, ok := c.typeOverrides[docType]; ok {
		// Config-level type overrides replace the built-in table entry.
		typeDefault = ResolvePolicy(typeDefault, o, Partial{})
	}
	return ResolvePolicy(typeDefault, c.tenantOverrides[tenant], call)
}

// structuralUnits applies the type-specific splitting rule. Returns nil units
// when the rule does not apply to the given content, which triggers the
// sliding-window fallback.
func (c *Chunker) structuralUnits(content string, docType DocType, policy Policy) ([]string, string) {
	switch docType {
	case TypePDF:
		return splitPages(content), "pages"
	case TypeDocx:
		return splitParagraphs(content), "paragraphs"
	case TypeXlsx:
		return splitSheetRows(content, policy), "sheets"
	case TypePptx:
		return splitSlides(content), "slides"
	case TypeHTML:
		return splitHTMLSections(content), "sections"
	case TypeCSV:
		return splitCSVRows(content, policy), "rows"
	case TypeTxt:
		return splitSentences(content), "sentences"
	default:
		return nil, "window"
	}
}

// packUnits greedily packs structural units into chunks of at most
// policy.ChunkSize runes. A single unit larger than the chunk size is
// recursively re-split by the sliding window.
func packUnits(units []string, policy Policy) []string {
	var out []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if bufLen > 0 {
			out = append(out, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}

	for _, u := range units {
		ul := len([]rune(u))
		if ul > policy.ChunkSize {
			flush()
			out = append(out, slidingWindow(u, policy.ChunkSize, policy.Overlap)...)
			continue
		}
		if bufLen > 0 && bufLen+1+ul > policy.ChunkSize {
			flush()
		}
		if bufLen > 0 {
			buf.WriteString("\n")
			bufLen++
		}
		buf.WriteString(u)
		bufLen += ul
	}
	flush()
	return out
}

// slidingWindow cuts text into fixed-size windows with the given overlap.
// Stride is size-overlap; a non-positive stride degrades to size.
func slidingWindow(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	stride := size - overlap
	if stride <= 0 {
		stride = size
	}

	var out []string
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
