// Package document defines the document aggregate.
package document

import (
	"regexp"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Document is the document aggregate. Immutable after creation except via
// re-ingestion, which replaces it wholesale.
type Document struct {
	id        string
	tenant    string
	title     string
	source    string
	docType   string
	metadata  map[string]string
	createdAt time.Time
}

// New validates and creates a Document.
func New(id, tenant, title, source, docType string, metadata map[string]string) (Document, error) {
	if id == "" {
		return Document{}, domain.Validationf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, domain.Validationf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, domain.Validationf("document ID must be alphanumeric with underscores and hyphens")
	}
	if tenant == "" {
		return Document{}, domain.Validationf("tenant is required")
	}

	return Document{
		id:        id,
		tenant:    tenant,
		title:     title,
		source:    source,
		docType:   docType,
		metadata:  cloneMap(metadata),
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, tenant, title, source, docType string,
	metadata map[string]string, createdAt time.Time,
) Document {
	return Document{
		id: id, tenant: tenant, title: title, source: source,
		docType: docType, metadata: metadata, createdAt: createdAt,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Tenant returns the owning tenant.
func (d *Document) Tenant() string { return d.tenant }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Source returns the upload source.
func (d *Document) Source() string { return d.source }

// Type returns the document type (pdf, docx, txt, ...).
func (d *Document) Type() string { return d.docType }

// Metadata returns the document metadata fields.
func (d *Document) Metadata() map[string]string { return d.metadata }

// CreatedAt returns the creation timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
