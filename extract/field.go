// Package extract pulls listing attributes out of agency markup text using
// ordered, data-driven regular expression rules.
package extract

import "rental-scraper/models"

// Field is an extracted value together with where it came from.
type Field[T any] struct {
	Value T
	State models.FieldState
}

// Found wraps a value extracted from the source.
func Found[T any](v T) Field[T] {
	return Field[T]{Value: v, State: models.FieldFound}
}

// Estimated wraps a documented default standing in for missing source data.
func Estimated[T any](v T) Field[T] {
	return Field[T]{Value: v, State: models.FieldEstimated}
}

// Unknown is the empty field.
func Unknown[T any]() Field[T] {
	return Field[T]{State: models.FieldUnknown}
}

// Ok reports whether the value was extracted from the source.
func (f Field[T]) Ok() bool {
	return f.State == models.FieldFound
}

// Or returns f unless it is Unknown, in which case it returns estimate
// flagged as Estimated. Found values are never replaced.
func (f Field[T]) Or(estimate T) Field[T] {
	if f.State != models.FieldUnknown {
		return f
	}
	return Estimated(estimate)
}

// OrField returns f if it was found, otherwise other. Used to prefer detail
// page data over index card data.
func (f Field[T]) OrField(other Field[T]) Field[T] {
	if f.Ok() {
		return f
	}
	if other.State != models.FieldUnknown {
		return other
	}
	return f
}
