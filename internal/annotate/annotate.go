// Package annotate rewrites a watchlist into "code|name|sector|type" entries
// using quote metadata.
package annotate

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/fentz26/stockwatch/internal/envfile"
	"github.com/fentz26/stockwatch/internal/quote"
)

// ErrEmptyWatchlist is returned when the watchlist holds no codes.
var ErrEmptyWatchlist = errors.New("watchlist is empty")

// MetadataSource resolves instrument metadata.
type MetadataSource interface {
	FetchMetadata(ctx context.Context, codes []string) (map[string]quote.Metadata, error)
}

// Proposal is an annotated watchlist ready to be written.
type Proposal struct {
	Codes   []string `json:"codes"`
	Entries []string `json:"entries"`
	Value   string   `json:"stock_list"`
}

// Annotator builds annotated watchlists.
type Annotator struct {
	source MetadataSource
	logger *log.Logger
}

// New creates an annotator backed by source.
func New(source MetadataSource, logger *log.Logger) *Annotator {
	if logger == nil {
		logger = log.New(log.Writer(), "[annotate] ", log.LstdFlags)
	}
	return &Annotator{source: source, logger: logger}
}

// Build annotates raw, an existing STOCK_LIST value. When the lookup fails
// every code is labelled unknown.
func (a *Annotator) Build(ctx context.Context, raw string) (*Proposal, error) {
	codes := envfile.ParseCodes(raw)
	if len(codes) == 0 {
		return nil, ErrEmptyWatchlist
	}

	a.logger.Printf("Looking up metadata for %d codes", len(codes))
	metadata, err := a.source.FetchMetadata(ctx, codes)
	if err != nil {
		a.logger.Printf("Metadata lookup failed: %v", err)
		metadata = nil
	}

	entries := make([]string, len(codes))
	for i, code := range codes {
		m, ok := metadata[code]
		if !ok {
			m = quote.UnknownMetadata()
		}
		entries[i] = strings.Join([]string{code, m.Name, m.Sector, m.Type}, "|")
	}

	return &Proposal{
		Codes:   codes,
		Entries: entries,
		Value:   "\n" + strings.Join(entries, ",\n") + "\n",
	}, nil
}

// Apply writes the proposal into the env file behind editor.
func Apply(editor *envfile.Editor, p *Proposal) error {
	return editor.SetStockListRaw(p.Value)
}
