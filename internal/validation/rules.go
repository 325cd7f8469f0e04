// Package validation checks submitted form values against declarative rules
// and reports one human-readable message per failing field.
package validation

// Kind identifies which check a Rule applies.
type Kind string

const (
	KindRequired        Kind = "required"
	KindEmail           Kind = "email"
	KindPassword        Kind = "password"
	KindConfirmPassword Kind = "confirmPassword"
	KindFullName        Kind = "fullName"
	KindPhone           Kind = "phone"
	KindAddress         Kind = "address"
	KindTitle           Kind = "title"
	KindDescription     Kind = "description"
	KindPrice           Kind = "price"
	KindURL             Kind = "url"
	KindCustom          Kind = "custom"
)

// Default bounds used when a Rule leaves them zero.
const (
	DefaultPasswordMinLength = 6
	DefaultTitleMaxLength    = 200
	DefaultDescriptionMax    = 5000
	DefaultPriceMax          = 10000
)

// CustomFunc validates value with access to every submitted value.
// It returns an empty string when the value is acceptable.
type CustomFunc func(value string, values map[string]string) string

// Rule describes how a single field is validated.
type Rule struct {
	Kind Kind

	// Label names the field in KindRequired messages. Defaults to the field name.
	Label string

	// RequireDomain restricts KindEmail to the engine's allowed domain.
	RequireDomain bool

	// CompareField names the field a KindConfirmPassword value must equal.
	CompareField string

	// MinLength and MaxLength override the defaults of password, title and description.
	MinLength int
	MaxLength int

	// Min and Max bound KindPrice. Max defaults to DefaultPriceMax.
	Min float64
	Max float64

	// Func is called for KindCustom.
	Func CustomFunc
}

// RuleSet maps field names to their rule.
type RuleSet map[string]Rule

// Result is the outcome of validating a whole form.
// Errors is non-nil and empty when IsValid is true.
type Result struct {
	IsValid bool
	Errors  map[string]string
}

// Convenience constructors used by page definitions.

func Required(label string) Rule { return Rule{Kind: KindRequired, Label: label} }

func CampusEmail() Rule { return Rule{Kind: KindEmail, RequireDomain: true} }

func Email() Rule { return Rule{Kind: KindEmail} }

func Password(minLength int) Rule { return Rule{Kind: KindPassword, MinLength: minLength} }

func ConfirmPassword(compareField string) Rule {
	return Rule{Kind: KindConfirmPassword, CompareField: compareField}
}

func FullName() Rule { return Rule{Kind: KindFullName} }

func Phone() Rule { return Rule{Kind: KindPhone} }

func Address() Rule { return Rule{Kind: KindAddress} }

func Custom(fn CustomFunc) Rule { return Rule{Kind: KindCustom, Func: fn} }
