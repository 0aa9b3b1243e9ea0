// Package validation checks client-side input before it is sent to the
// backend.
//
// Struct tags are validated with go-playground/validator:
//
//	type Config struct {
//	    BaseURL string `json:"base_url" validate:"required,url"`
//	}
//	err := validation.Validate(cfg)
//
// Ad-hoc checks collect errors on a Validator:
//
//	v := validation.New().
//	    RecordID("id", id).
//	    CollectionName("collection", name)
//	err := v.Validate()
//
// Both return an *errors.AppError with code INVALID_INPUT whose "fields"
// detail lists every FieldError.
package validation
