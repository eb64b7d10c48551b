package viewer

import (
	"fmt"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

var (
	ErrNotOpen       = fmt.Errorf("viewer: no file open: %w", domain.ErrConflict)
	ErrNotMarkupMode = fmt.Errorf("viewer: not in markup mode: %w", domain.ErrConflict)
	ErrWrongFormat   = fmt.Errorf("viewer: event does not apply to this format: %w", domain.ErrConflict)
)
