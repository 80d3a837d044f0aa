package domain

import "errors"

// Fatal configuration and data errors surfaced by the screening engine.
// All of them abort the whole evaluation before or during rule dispatch;
// no partial hit set is returned alongside them.
var (
	// ErrConfig marks a legacy rule definition missing id, field or operator.
	ErrConfig = errors.New("invalid rule configuration")

	// ErrMissingColumn marks a transaction table without a txn_id column.
	ErrMissingColumn = errors.New("required column missing")

	// ErrUnsupportedOperator marks an unrecognized operator name.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrMalformedRules marks a legacy configuration whose rules key is
	// not a list.
	ErrMalformedRules = errors.New("rules must be a list")
)
