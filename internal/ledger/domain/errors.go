package domain

import "errors"

var (
	ErrNotTabular            = errors.New("not_tabular")
	ErrMissingRequiredColumn = errors.New("missing_required_column")
)
