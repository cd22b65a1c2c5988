package content

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/models"
)

// plainSlug rejects slugs that would place the Markdown body outside the
// markdown directory.
var plainSlug = validation.By(func(v any) error {
	s, _ := v.(string)
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." {
		return errors.New("must not contain path separators")
	}
	return nil
})

func validateBlogInput(in models.BlogInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.Slug, validation.Required, plainSlug),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

func validatePortfolioInput(in models.PortfolioInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.URL, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}
