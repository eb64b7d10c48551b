package domain

// Locator is a normalized markup position. X and Y are percentages of the
// unscaled content box. At most one of Timestamp (video seconds) and Page
// (1-based PDF page) is set.
type Locator struct {
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	Page      *int     `json:"page,omitempty"`
}

// Clone returns a copy that shares no pointers with l.
func (l Locator) Clone() Locator {
	out := Locator{X: l.X, Y: l.Y}
	if l.Timestamp != nil {
		ts := *l.Timestamp
		out.Timestamp = &ts
	}
	if l.Page != nil {
		p := *l.Page
		out.Page = &p
	}
	return out
}

// Validate checks ranges and the timestamp/page exclusivity rule.
func (l Locator) Validate() error {
	var errs []FieldError

	if l.X < 0 || l.X > 100 {
		errs = append(errs, FieldError{Field: "x", Message: "must be between 0 and 100"})
	}
	if l.Y < 0 || l.Y > 100 {
		errs = append(errs, FieldError{Field: "y", Message: "must be between 0 and 100"})
	}
	if l.Timestamp != nil && l.Page != nil {
		errs = append(errs, FieldError{Field: "locator", Message: "timestamp and page are mutually exclusive"})
	}
	if l.Timestamp != nil && *l.Timestamp < 0 {
		errs = append(errs, FieldError{Field: "timestamp", Message: "must be non-negative"})
	}
	if l.Page != nil && *l.Page < 1 {
		errs = append(errs, FieldError{Field: "page", Message: "must be >= 1"})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// MatchesFormat reports whether the locator carries the dimension the format needs.
func (l Locator) MatchesFormat(f FileFormat) bool {
	switch f {
	case FileFormatVideo:
		return l.Timestamp != nil && l.Page == nil
	case FileFormatPDF:
		return l.Page != nil && l.Timestamp == nil
	case FileFormatImage:
		return l.Timestamp == nil && l.Page == nil
	}
	return false
}
