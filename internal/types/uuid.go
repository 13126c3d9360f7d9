package types

import (
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

const (
	UUID_PREFIX_INVOICE           = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM = "inv_line"
	UUID_PREFIX_PAYMENT           = "pay"
	UUID_PREFIX_TAX_RATE          = "taxrate"
	UUID_PREFIX_TAX_SNAPSHOT      = "taxsnap"
	UUID_PREFIX_TUITION_PRICE     = "price"

	// InvoiceNumberPrefix starts every human facing invoice number
	InvoiceNumberPrefix = "INV-"
	invoiceNumberLength = 20
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns prefix_<ulid>, e.g. pay_01J9Z3K6...
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return prefix + "_" + GenerateUUID()
}

var (
	sid     *shortid.Shortid
	sidOnce sync.Once
)

// GenerateInvoiceNumber returns a short upper case invoice number such as
// INV-X7KQ2M9A. It falls back to a ulid suffix if shortid fails.
func GenerateInvoiceNumber() string {
	sidOnce.Do(func() {
		sid = shortid.MustNew(1, shortid.DefaultABC, uint64(ulid.Now()))
	})

	suffix, err := sid.Generate()
	if err != nil {
		suffix = GenerateUUID()
	}
	suffix = strings.NewReplacer("-", "", "_", "").Replace(suffix)

	n := strings.ToUpper(InvoiceNumberPrefix + suffix)
	if len(n) > invoiceNumberLength {
		n = n[:invoiceNumberLength]
	}
	return n
}
