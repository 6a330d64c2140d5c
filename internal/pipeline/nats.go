package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fentz26/stockwatch/internal/models"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Request is the message sent to a remote analysis service.
type Request struct {
	RequestID  string            `json:"request_id"`
	Symbol     string            `json:"code"`
	ReportKind models.ReportKind `json:"report_type"`
	Source     any               `json:"source,omitempty"`
}

// Reply is the message a remote analysis service answers with.
type Reply struct {
	Result *models.AnalysisResult `json:"result"`
	Error  string                 `json:"error,omitempty"`
}

// NATS forwards analysis requests to a remote service over NATS request/reply.
type NATS struct {
	conn   *nats.Conn
	cfg    NATSConfig
	source any
}

// NewNATS creates a NATS pipeline.
func NewNATS(conn *nats.Conn, cfg NATSConfig, source any) *NATS {
	return &NATS{conn: conn, cfg: cfg, source: source}
}

// AnalyzeSingle implements Pipeline.
func (n *NATS) AnalyzeSingle(ctx context.Context, symbol string, kind models.ReportKind) (*models.AnalysisResult, error) {
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	data, err := json.Marshal(Request{
		RequestID:  uuid.New().String(),
		Symbol:     symbol,
		ReportKind: kind,
		Source:     n.source,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	msg, err := n.conn.RequestWithContext(ctx, n.cfg.Subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("no analysis service listening on %s", n.cfg.Subject)
		}
		return nil, fmt.Errorf("analysis request: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return reply.Result, nil
}
