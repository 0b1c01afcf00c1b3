// Package sri builds the artifacts the Ecuadorian tax authority (SRI)
// requires for an electronic invoice: the 49 digit access key and the
// factura XML document.
package sri

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
)

const (
	DocInvoice    = "01"
	emissionFixed = "1"
	keyBaseLen    = 48
	KeyLen        = keyBaseLen + 1
	maxSequential = 999_999_999
	keyDateLayout = "02012006"
)

// MerchantConfig is the issuer data printed on every document.
type MerchantConfig struct {
	RUC                  string `mapstructure:"ruc"`
	LegalName            string `mapstructure:"legal_name"`
	TradeName            string `mapstructure:"trade_name"`
	HeadOfficeAddress    string `mapstructure:"head_office_address"`
	EstablishmentAddress string `mapstructure:"establishment_address"`
	Environment          int    `mapstructure:"environment"` // 1 test, 2 production
	Establishment        string `mapstructure:"establishment"`
	EmissionPoint        string `mapstructure:"emission_point"`
	KeepsAccounting      bool   `mapstructure:"keeps_accounting"`
}

// Validate checks the fields that end up inside the access key.
func (m MerchantConfig) Validate() error {
	if !digits(m.RUC, 13) {
		return errs.Invalid("ruc", "must be 13 digits")
	}
	if m.Environment != 1 && m.Environment != 2 {
		return errs.Invalid("environment", "must be 1 or 2")
	}
	if !digitsUpTo(m.Establishment, 3) {
		return errs.Invalid("establishment", "must be up to 3 digits")
	}
	if !digitsUpTo(m.EmissionPoint, 3) {
		return errs.Invalid("emission_point", "must be up to 3 digits")
	}
	return nil
}

// GenerateAccessKey derives the access key of a document. It is a pure
// function of its inputs; the numeric code reuses the sequential number.
func GenerateAccessKey(issueDate time.Time, docType string, sequential int64, m MerchantConfig) (string, error) {
	if !digitsUpTo(docType, 2) {
		return "", errs.Invalid("doc_type", "must be up to 2 digits")
	}
	if sequential < 1 || sequential > maxSequential {
		return "", errs.Invalid("sequential", "must be between 1 and 999999999")
	}
	if err := m.Validate(); err != nil {
		return "", err
	}

	base := issueDate.Format(keyDateLayout) +
		pad(docType, 2) +
		m.RUC +
		strconv.Itoa(m.Environment) +
		pad(m.Establishment, 3) +
		pad(m.EmissionPoint, 3) +
		fmt.Sprintf("%09d", sequential) +
		fmt.Sprintf("%08d", sequential%100_000_000) +
		emissionFixed

	d, err := CheckDigit(base)
	if err != nil {
		return "", err
	}
	return base + strconv.Itoa(d), nil
}

// CheckDigit computes the modulo 11 digit of a 48 digit key base. Weights
// run 2..7 from the rightmost digit and wrap.
func CheckDigit(base string) (int, error) {
	if !digits(base, keyBaseLen) {
		return 0, errs.Invalid("access_key", "base must be 48 digits")
	}
	sum, w := 0, 2
	for i := len(base) - 1; i >= 0; i-- {
		sum += int(base[i]-'0') * w
		w++
		if w > 7 {
			w = 2
		}
	}
	d := 11 - sum%11
	switch d {
	case 11:
		return 0, nil
	case 10:
		return 1, nil
	}
	return d, nil
}

// ValidateAccessKey checks length, charset and the trailing check digit.
func ValidateAccessKey(key string) error {
	if !digits(key, KeyLen) {
		return errs.Invalid("access_key", "must be 49 digits")
	}
	d, err := CheckDigit(key[:keyBaseLen])
	if err != nil {
		return err
	}
	if int(key[keyBaseLen]-'0') != d {
		return errs.Invalid("access_key", "check digit mismatch")
	}
	return nil
}

// KeyDate is the issue date carried in the first eight digits of a key.
func KeyDate(key string) (time.Time, error) {
	if err := ValidateAccessKey(key); err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(keyDateLayout, key[:8])
	if err != nil {
		return time.Time{}, errs.Invalid("access_key", "bad issue date")
	}
	return d, nil
}

func pad(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}

func digits(s string, n int) bool {
	return len(s) == n && allDigits(s)
}

func digitsUpTo(s string, n int) bool {
	return len(s) > 0 && len(s) <= n && allDigits(s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
