package analysis

import (
	"errors"

	"github.com/fentz26/stockwatch/internal/taskstore"
)

// Sentinel errors for analysis task operations.
var (
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidReportKind = errors.New("invalid report type")
	ErrTaskNotFound      = taskstore.ErrTaskNotFound
	ErrEmptyResult       = errors.New("analysis returned empty result")
	ErrShutdown          = errors.New("analysis service shut down before the task ran")
)
