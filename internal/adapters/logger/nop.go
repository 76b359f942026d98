package logger

import (
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
)

// NewNop returns a domain.Logger that discards all output. Useful in tests
// and as a safe default where no logger has been wired yet.
func NewNop() domain.Logger {
	return &ZapAdapter{logger: zap.NewNop()}
}
