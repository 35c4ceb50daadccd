package state

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

type CheckoutForm struct {
	FirstName  string `form:"firstName" validate:"required"`
	LastName   string `form:"lastName" validate:"required"`
	Email      string `form:"email" validate:"required,email"`
	Phone      string `form:"phone" validate:"required,phone"`
	Address    string `form:"address" validate:"required"`
	City       string `form:"city" validate:"required"`
	PostalCode string `form:"postalCode" validate:"required"`
	Notes      string `form:"notes"`

	CardNumber string `form:"cardNumber" validate:"required,cardnumber"`
	CardName   string `form:"cardName" validate:"required"`
	Expiry     string `form:"expiryDate" validate:"required,expiry"`
	CVV        string `form:"cvv" validate:"required,cvv"`
}

var shippingFields = []string{"FirstName", "LastName", "Email", "Phone", "Address", "City", "PostalCode"}

const minPhoneDigits = 10

type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors lists failures in form order; the first entry is the
// field to bring into view.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() error { return ErrValidation }

func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

var fieldMessages = map[string]map[string]string{
	"FirstName":  {"required": "El nombre es obligatorio"},
	"LastName":   {"required": "El apellido es obligatorio"},
	"Email":      {"required": "El email es obligatorio", "email": "El email no es válido"},
	"Phone":      {"required": "El teléfono es obligatorio", "phone": "El teléfono debe tener al menos 10 dígitos"},
	"Address":    {"required": "La dirección es obligatoria"},
	"City":       {"required": "La ciudad es obligatoria"},
	"PostalCode": {"required": "El código postal es obligatorio"},
	"CardNumber": {"required": "El número de tarjeta es obligatorio", "cardnumber": "El número de tarjeta no es válido"},
	"CardName":   {"required": "El nombre en la tarjeta es obligatorio"},
	"Expiry":     {"required": "La fecha de vencimiento es obligatoria", "expiry": "Formato de fecha inválido (MM/AA)"},
	"CVV":        {"required": "El CVV es obligatorio", "cvv": "El CVV no es válido"},
}

var (
	expiryPattern = regexp.MustCompile(`^\d{2}/\d{2}$`)
	formValidator = newFormValidator()
)

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	v.RegisterValidation("cardnumber", func(fl validator.FieldLevel) bool {
		d := digitsOnly(fl.Field().String())
		return len(d) >= 13 && len(d) == len(strings.ReplaceAll(fl.Field().String(), " ", ""))
	})
	v.RegisterValidation("expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("cvv", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) >= 3 && digitsOnly(s) == s
	})
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return len(digitsOnly(fl.Field().String())) >= minPhoneDigits
	})
	return v
}

// Validate checks the whole form.
func (f CheckoutForm) Validate() ValidationErrors {
	return toValidationErrors(formValidator.Struct(f))
}

// ValidateShipping checks only the shipping step.
func (f CheckoutForm) ValidateShipping() ValidationErrors {
	return toValidationErrors(formValidator.StructPartial(f, shippingFields...))
}

func toValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Field: "form", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		msg := fieldMessages[fe.StructField()][fe.Tag()]
		if msg == "" {
			msg = fe.Field() + " no es válido"
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

// ShippingAddress joins the address parts into the single string the order API stores.
func (f CheckoutForm) ShippingAddress() string {
	return strings.Join([]string{f.Address, f.City, f.PostalCode}, ", ")
}

// SetField applies a keystroke-level formatter and stores the value.
// It reports false for unknown fields.
func (f *CheckoutForm) SetField(name, value string) bool {
	switch name {
	case "firstName":
		f.FirstName = value
	case "lastName":
		f.LastName = value
	case "email":
		f.Email = value
	case "phone":
		f.Phone = FormatPhone(value)
	case "address":
		f.Address = value
	case "city":
		f.City = value
	case "postalCode":
		f.PostalCode = value
	case "notes":
		f.Notes = value
	case "cardNumber":
		f.CardNumber = FormatCardNumber(value)
	case "cardName":
		f.CardName = value
	case "expiryDate":
		f.Expiry = FormatExpiry(value)
	case "cvv":
		f.CVV = FormatCVV(value)
	default:
		return false
	}
	return true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCardNumber groups up to 16 digits into blocks of four.
func FormatCardNumber(v string) string {
	d := digitsOnly(v)
	if len(d) > 16 {
		d = d[:16]
	}
	var parts []string
	for len(d) > 4 {
		parts = append(parts, d[:4])
		d = d[4:]
	}
	if d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, " ")
}

// FormatExpiry inserts the slash once two digits are typed.
func FormatExpiry(v string) string {
	d := digitsOnly(v)
	if len(d) > 4 {
		d = d[:4]
	}
	if len(d) >= 2 {
		return d[:2] + "/" + d[2:]
	}
	return d
}

func FormatCVV(v string) string {
	d := digitsOnly(v)
	if len(d) > 4 {
		d = d[:4]
	}
	return d
}

// FormatPhone renders up to 11 digits as +D (DDD) DDD-DDDD.
func FormatPhone(v string) string {
	d := digitsOnly(v)
	if len(d) > 11 {
		d = d[:11]
	}
	n := len(d)
	if n == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("+" + d[:1])
	if n > 1 {
		b.WriteString(" (" + d[1:min(n, 4)])
	}
	if n >= 4 {
		b.WriteString(")")
	}
	if n > 4 {
		b.WriteString(" " + d[4:min(n, 7)])
	}
	if n > 7 {
		b.WriteString("-" + d[7:])
	}
	return b.String()
}
