package pipeline

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/tjfontaine/deployhook/internal/domain"
)

// ValidateNotification decodes a raw request body into a BuildNotification.
// Unknown fields are accepted and dropped.
func ValidateNotification(body []byte) (domain.BuildNotification, error) {
	var n domain.BuildNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return domain.BuildNotification{}, domain.ErrValidation(err.Error()).WithCause(err)
	}

	err := validation.Errors{
		"ref":             validation.Validate(n.Ref, validation.Required),
		"build_status":    validation.Validate(n.BuildStatus, validation.Required),
		"repository.name": validation.Validate(n.Repository.Name, validation.Required),
	}.Filter()
	if err != nil {
		return domain.BuildNotification{}, domain.ErrValidation(err.Error()).WithCause(err)
	}

	return n, nil
}
