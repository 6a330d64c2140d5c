// Package quote looks up instrument names from the Sina real-time quote feed.
package quote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/stockwatch/internal/telemetry"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	// DefaultBaseURL is the Sina quote endpoint.
	DefaultBaseURL = "http://hq.sinajs.cn"
	// DefaultTimeout bounds one metadata request.
	DefaultTimeout = 10 * time.Second

	referer   = "http://finance.sina.com.cn"
	userAgent = "Mozilla/5.0"
)

// Labels used when guessing an instrument's sector and type.
const (
	SectorAShare = "A-share"
	SectorFund   = "Fund"
	SectorHK     = "HK"
	TypeStock    = "Stock"
	TypeETF      = "ETF"
	TypeHK       = "HK"
	Unknown      = "Unknown"
)

// ErrNoCodes is returned when FetchMetadata is called without codes.
var ErrNoCodes = errors.New("no codes to look up")

// Metadata describes one instrument.
type Metadata struct {
	Name   string `json:"name"`
	Sector string `json:"sector"`
	Type   string `json:"type"`
}

// UnknownMetadata is reported for codes the feed has no quote for.
func UnknownMetadata() Metadata {
	return Metadata{Name: Unknown, Sector: Unknown, Type: Unknown}
}

// MarketSymbol prefixes code with its exchange: hk for five digit codes, sh
// for Shanghai prefixes and sz otherwise.
func MarketSymbol(code string) string {
	code = strings.TrimSpace(code)
	if len(code) == 5 {
		return "hk" + code
	}
	for _, p := range []string{"6", "5", "9", "11", "13"} {
		if strings.HasPrefix(code, p) {
			return "sh" + code
		}
	}
	return "sz" + code
}

// GuessSector classifies code by its prefix.
func GuessSector(code string) (sector, kind string) {
	for _, p := range []string{"5", "15", "16", "18"} {
		if strings.HasPrefix(code, p) {
			return SectorFund, TypeETF
		}
	}
	if len(code) == 5 {
		return SectorHK, TypeHK
	}
	return SectorAShare, TypeStock
}

// Client queries the quote feed.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the public feed. System proxies are ignored.
func NewClient() *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: &http.Transport{Proxy: nil},
		},
	}
}

// FetchMetadata looks up all codes in a single request. Codes without a quote
// map to UnknownMetadata.
func (c *Client) FetchMetadata(ctx context.Context, codes []string) (map[string]Metadata, error) {
	if len(codes) == 0 {
		return nil, ErrNoCodes
	}

	symbols := make([]string, len(codes))
	bySymbol := make(map[string]string, len(codes))
	for i, code := range codes {
		symbols[i] = MarketSymbol(code)
		bySymbol[symbols[i]] = code
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/list="+strings.Join(symbols, ","), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", userAgent)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		telemetry.QuoteRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		telemetry.QuoteRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("quote request: unexpected status %d", resp.StatusCode)
	}

	metadata := make(map[string]Metadata, len(codes))
	scanner := bufio.NewScanner(transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder()))
	for scanner.Scan() {
		symbol, name, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		code, known := bySymbol[symbol]
		if !known {
			continue
		}
		if name == "" {
			metadata[code] = UnknownMetadata()
			continue
		}
		sector, kind := GuessSector(code)
		metadata[code] = Metadata{Name: name, Sector: sector, Type: kind}
	}
	if err := scanner.Err(); err != nil {
		telemetry.QuoteRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read quotes: %w", err)
	}

	for _, code := range codes {
		if _, ok := metadata[code]; !ok {
			metadata[code] = UnknownMetadata()
		}
	}
	telemetry.QuoteRequests.WithLabelValues("success").Inc()
	return metadata, nil
}

// parseLine reads `var hq_str_sh600519="NAME,open,...";` and returns the
// symbol and the first field.
func parseLine(line string) (symbol, name string, ok bool) {
	const marker = "hq_str_"
	i := strings.Index(line, marker)
	if i < 0 {
		return "", "", false
	}
	rest := line[i+len(marker):]
	symbol, rest, ok = strings.Cut(rest, "=")
	if !ok {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, ";")
	rest = strings.Trim(rest, `"`)
	name, _, _ = strings.Cut(rest, ",")
	return strings.TrimSpace(symbol), strings.TrimSpace(name), true
}
