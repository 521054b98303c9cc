package validator

// Validator is the entry point services use for request validation. It
// combines struct-tag validation with the registered business rules.
type Validator struct {
	business *BusinessValidator
}

// New creates a validator with all custom rules registered.
func New() *Validator {
	return &Validator{
		business: NewBusinessValidator(),
	}
}

// Validate runs struct-tag validation and returns ValidationErrors as an
// error, or nil when the value is valid.
func (v *Validator) Validate(s interface{}) error {
	if errs := v.business.Validate(s); errs.HasErrors() {
		return errs
	}
	return nil
}

// GetBusinessValidator exposes the underlying business validator for
// rule checks that need more context than a single struct.
func (v *Validator) GetBusinessValidator() *BusinessValidator {
	return v.business
}
