package recipe

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to engine errors.
const (
	TextCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	TextCodeFavoriteExists     = "FAVORITE_EXISTS"
	TextCodeRecipeNotFound     = "RECIPE_NOT_FOUND"
)

// NewValidationError converts an ozzo validation failure into a categorized error.
func NewValidationError(message string, err error) error {
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, message)
}

// StorageUnavailable wraps a backing store failure.
func StorageUnavailable(err error, message string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsConflict(err) || IsValidation(err) {
		return err
	}
	// Wrap would keep the category of an already categorized source.
	wrapped := goerrors.New(message, goerrors.CategoryExternal).
		WithTextCode(TextCodeStorageUnavailable)
	wrapped.Source = err
	return wrapped
}

// NotFound reports a missing single entity.
func NotFound(message string) error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithTextCode(TextCodeRecipeNotFound)
}

// Conflict reports a write rejected because the target state already exists.
func Conflict(message, textCode string) error {
	return goerrors.New(message, goerrors.CategoryConflict).
		WithTextCode(textCode)
}

func IsStorageUnavailable(err error) bool {
	return goerrors.HasCategory(err, goerrors.CategoryExternal)
}

func IsNotFound(err error) bool {
	return goerrors.HasCategory(err, goerrors.CategoryNotFound)
}

func IsConflict(err error) bool {
	return goerrors.HasCategory(err, goerrors.CategoryConflict)
}

func IsValidation(err error) bool {
	return goerrors.HasCategory(err, goerrors.CategoryValidation)
}
