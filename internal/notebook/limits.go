package notebook

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/urlutil"
)

const (
	// MaxFolderNameLength is the maximum folder name length in characters.
	MaxFolderNameLength = 100

	// MaxNoteTitleLength is the maximum note title length in characters.
	MaxNoteTitleLength = 200
)

func validateFolderName(name string) error {
	err := validation.Validate(name,
		validation.Required.Error("Folder name is required"),
		validation.RuneLength(1, MaxFolderNameLength).Error("Folder name cannot exceed 100 characters"),
	)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, err.Error(), err)
	}
	return nil
}

// noteFields is the trimmed, validatable form of a note's editable fields.
type noteFields struct {
	Title   string
	Content string
	URL     string
}

func (f *noteFields) validate() error {
	err := validation.ValidateStruct(f,
		validation.Field(&f.Title,
			validation.Required.Error("Title is required"),
			validation.RuneLength(1, MaxNoteTitleLength).Error("Title cannot exceed 200 characters"),
		),
		validation.Field(&f.Content, validation.Required.Error("Content is required")),
		validation.Field(&f.URL, validation.Match(urlutil.WebURLPattern).Error("Please enter a valid URL")),
	)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, validationMessage(err), err)
	}
	return nil
}

// validationMessage flattens ozzo field errors into one sentence ordered by field.
func validationMessage(err error) string {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	keys := make([]string, 0, len(fieldErrs))
	for k := range fieldErrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fieldErrs[k].Error())
	}
	return strings.Join(msgs, "; ")
}

// optional trims v and returns nil when nothing is left.
func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
