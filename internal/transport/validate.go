package transport

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/book_market/internal/apperr"
)

// EmailCheck reports whether email can be used by a new or updated account.
type EmailCheck func(email string) (bool, error)

// AvailabilityCheck reports whether every id refers to an ACTIVE item.
type AvailabilityCheck func(ids []uint) (bool, error)

func (r LoginRequest) Validate() error {
	return AsAppError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	))
}

func (r CreateAccountRequest) Validate(emailFree EmailCheck) error {
	return AsAppError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("Name must be provided"), validation.Length(1, 200)),
		validation.Field(&r.Email,
			validation.Required.Error("Email must be provided"),
			is.Email.Error("Email must be valid"),
			validation.By(emailAvailable(emailFree)),
		),
		validation.Field(&r.Password, validation.Required.Error("Password must be provided"), validation.Length(6, 100)),
	))
}

func (r UpdateAccountRequest) Validate(emailFree EmailCheck) error {
	return AsAppError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("Name must be provided"), validation.Length(1, 200)),
		validation.Field(&r.Email,
			validation.Required.Error("Email must be provided"),
			is.Email.Error("Email must be valid"),
			validation.By(emailAvailable(emailFree)),
		),
	))
}

func (r CreateItemRequest) Validate() error {
	return AsAppError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("Name must be provided"), validation.Length(1, 200)),
		validation.Field(&r.Price, validation.By(positivePrice)),
		validation.Field(&r.CustomerID, validation.Required.Error("Customer must be provided")),
	))
}

func (r UpdateItemRequest) Validate() error {
	return AsAppError(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty.Error("Name must not be empty")),
		validation.Field(&r.Price, validation.By(positivePrice)),
	))
}

func (r CreatePurchaseRequest) Validate(available AvailabilityCheck) error {
	return AsAppError(validation.ValidateStruct(&r,
		validation.Field(&r.CustomerID, validation.Required.Error("Customer must be provided")),
		validation.Field(&r.BookIDs,
			validation.Required.Error("Books must be provided"),
			validation.By(func(v interface{}) error {
				ids, _ := v.([]uint)
				ok, err := available(ids)
				if err != nil {
					return validation.NewInternalError(err)
				}
				if !ok {
					return errors.New("Books not available for purchase")
				}
				return nil
			}),
		),
	))
}

func emailAvailable(check EmailCheck) validation.RuleFunc {
	return func(v interface{}) error {
		email, _ := v.(string)
		if email == "" || check == nil {
			return nil
		}
		free, err := check(email)
		if err != nil {
			return validation.NewInternalError(err)
		}
		if !free {
			return errors.New("Email already in use")
		}
		return nil
	}
}

func positivePrice(v interface{}) error {
	var d decimal.Decimal
	switch p := v.(type) {
	case decimal.Decimal:
		d = p
	case *decimal.Decimal:
		if p == nil {
			return nil
		}
		d = *p
	default:
		return nil
	}
	if !d.IsPositive() {
		return errors.New("Price must be greater than zero")
	}
	return nil
}

// AsAppError turns ozzo validation output into an ML-001 error with one
// entry per field, sorted by field name.
func AsAppError(err error) error {
	if err == nil {
		return nil
	}
	var ie validation.InternalError
	if errors.As(err, &ie) {
		return apperr.Internal(ie.InternalError())
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return apperr.InvalidRequest(apperr.FieldError{Field: "body", Message: err.Error()})
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for name, fe := range verrs {
		if fe == nil {
			continue
		}
		if ie, ok := fe.(validation.InternalError); ok && ie.InternalError() != nil {
			return apperr.Internal(ie.InternalError())
		}
		fields = append(fields, apperr.FieldError{Field: name, Message: capitalize(fe.Error())})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return apperr.InvalidRequest(fields...)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
