package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NUMERIC(15,2): at most 13 digits before the point
var maxAmount = decimal.New(1, 13)

func newValidator() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(useJSONTagNames)

	// Validate these types as strings, so 'required' and custom tags work for them
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	validate.RegisterCustomTypeFunc(uuidValue, uuid.UUID{})

	_ = validate.RegisterValidation("inn", validateINN)
	_ = validate.RegisterValidation("amount", validateAmount)

	return validate
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func uuidValue(field reflect.Value) any {
	if id, ok := field.Interface().(uuid.UUID); ok && id != uuid.Nil {
		return id.String()
	}
	return ""
}

// Tax identifier of organization: exactly 10 or 12 digits
func validateINN(fl validator.FieldLevel) bool {
	inn := fl.Field().String()

	if len(inn) != 10 && len(inn) != 12 {
		return false
	}

	for i := 0; i < len(inn); i++ {
		if inn[i] < '0' || inn[i] > '9' {
			return false
		}
	}

	return true
}

// Non-negative money amount with at most 2 fractional digits that fits NUMERIC(15,2)
func validateAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}

	return !d.IsNegative() && d.Equal(d.Round(2)) && d.LessThan(maxAmount)
}
