package chunker

// DocType identifies the structural family of a document.
type DocType string

// Supported document types.
const (
	TypePDF  DocType = "pdf"
	TypeDocx DocType = "docx"
	TypeXlsx DocType = "xlsx"
	TypePptx DocType = "pptx"
	TypeHTML DocType = "html"
	TypeTxt  DocType = "txt"
	TypeCSV  DocType = "csv"
)

// DefaultMinChunkSize is the minimum trimmed chunk length kept after filtering.
const DefaultMinChunkSize = 50

// Policy is a fully resolved chunking policy.
type Policy struct {
	ChunkSize int
	Overlap   int
	// MaxRows bounds rows per chunk for row-batched types (csv). 0 = unbounded.
	MaxRows int
}

// Partial is a sparse policy overlay; zero fields are unset.
type Partial struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
	MaxRows   int `yaml:"max_rows"`
}

// DefaultPolicy returns the built-in policy for a document type. Unknown
// types fall back to the txt policy.
func DefaultPolicy(t DocType) Policy {
	switch t {
	case TypePDF:
		return Policy{ChunkSize: 1000, Overlap: 150}
	case TypeDocx:
		return Policy{ChunkSize: 800, Overlap: 120}
	case TypeXlsx:
		return Policy{ChunkSize: 500, Overlap: 50}
	case TypePptx:
		return Policy{ChunkSize: 600, Overlap: 80}
	case TypeHTML:
		return Policy{ChunkSize: 900, Overlap: 100}
	case TypeCSV:
		return Policy{ChunkSize: 300, Overlap: 30, MaxRows: 20}
	case TypeTxt:
		return Policy{ChunkSize: 1000, Overlap: 150}
	default:
		return Policy{ChunkSize: 1000, Overlap: 150}
	}
}

// ResolvePolicy merges policy layers with explicit precedence
// tenant > type default > call options, field by field. The source system
// merged these as dynamic arrays in this order; the ordering is preserved
// even though it makes call options the weakest layer.
func ResolvePolicy(typeDefault Policy, tenant, call Partial) Policy {
	out := Policy{
		ChunkSize: pick(tenant.ChunkSize, typeDefault.ChunkSize, call.ChunkSize),
		Overlap:   pick(tenant.Overlap, typeDefault.Overlap, call.Overlap),
		MaxRows:   pick(tenant.MaxRows, typeDefault.MaxRows, call.MaxRows),
	}
	if out.ChunkSize <= 0 {
		out.ChunkSize = DefaultPolicy(TypeTxt).ChunkSize
	}
	if out.Overlap < 0 || out.Overlap >= out.ChunkSize {
		out.Overlap = out.ChunkSize / 4
	}
	return out
}

// pick returns the first non-zero value in precedence order.
func pick(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
