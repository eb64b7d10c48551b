package share

import "github.com/heartmarshall/proofdesk/internal/domain"

// OpenInput holds parameters for opening a share link.
type OpenInput struct {
	ShareID  string
	Password string
}

// Validate validates the open input.
func (i OpenInput) Validate() error {
	var errs []domain.FieldError

	if i.ShareID == "" {
		errs = append(errs, domain.FieldError{Field: "share_id", Message: "required"})
	} else if len(i.ShareID) > 128 {
		errs = append(errs, domain.FieldError{Field: "share_id", Message: "too long"})
	}

	if len(i.Password) > 256 {
		errs = append(errs, domain.FieldError{Field: "password", Message: "too long"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
