package types

import "strings"

// CURRENCY_CODES_SYMBOLS is a map of 3 digit ISO currency codes to their symbols
var CURRENCY_CODES_SYMBOLS = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"aud": "AU$",
	"cad": "CA$",
	"chf": "CHF",
	"sek": "kr",
	"nzd": "NZ$",
	"hkd": "HK$",
	"sgd": "S$",
	"jpy": "¥",
	"cny": "¥",
	"inr": "₹",
	"brl": "R$",
	"mxn": "MX$",
	"krw": "₩",
	"zar": "R",
	"myr": "RM",
}

// zeroDecimalCurrencies have no minor unit, so one minor unit is one major unit
var zeroDecimalCurrencies = map[string]struct{}{
	"jpy": {},
	"krw": {},
	"vnd": {},
	"clp": {},
	"pyg": {},
	"isk": {},
}

// isoCurrencyCodes are the ISO 4217 codes the payment gateway can charge in
var isoCurrencyCodes = map[string]struct{}{
	"aed": {}, "afn": {}, "all": {}, "amd": {}, "ang": {}, "aoa": {}, "ars": {}, "aud": {},
	"awg": {}, "azn": {}, "bam": {}, "bbd": {}, "bdt": {}, "bgn": {}, "bhd": {}, "bif": {},
	"bmd": {}, "bnd": {}, "bob": {}, "brl": {}, "bsd": {}, "bwp": {}, "byn": {}, "bzd": {},
	"cad": {}, "cdf": {}, "chf": {}, "clp": {}, "cny": {}, "cop": {}, "crc": {}, "cve": {},
	"czk": {}, "djf": {}, "dkk": {}, "dop": {}, "dzd": {}, "egp": {}, "etb": {}, "eur": {},
	"fjd": {}, "fkp": {}, "gbp": {}, "gel": {}, "gip": {}, "gmd": {}, "gnf": {}, "gtq": {},
	"gyd": {}, "hkd": {}, "hnl": {}, "htg": {}, "huf": {}, "idr": {}, "ils": {}, "inr": {},
	"isk": {}, "jmd": {}, "jod": {}, "jpy": {}, "kes": {}, "kgs": {}, "khr": {}, "kmf": {},
	"krw": {}, "kwd": {}, "kyd": {}, "kzt": {}, "lak": {}, "lbp": {}, "lkr": {}, "lrd": {},
	"lsl": {}, "mad": {}, "mdl": {}, "mga": {}, "mkd": {}, "mmk": {}, "mnt": {}, "mop": {},
	"mur": {}, "mvr": {}, "mwk": {}, "mxn": {}, "myr": {}, "mzn": {}, "nad": {}, "ngn": {},
	"nio": {}, "nok": {}, "npr": {}, "nzd": {}, "omr": {}, "pab": {}, "pen": {}, "pgk": {},
	"php": {}, "pkr": {}, "pln": {}, "pyg": {}, "qar": {}, "ron": {}, "rsd": {}, "rub": {},
	"rwf": {}, "sar": {}, "sbd": {}, "scr": {}, "sek": {}, "sgd": {}, "shp": {}, "sle": {},
	"sos": {}, "srd": {}, "std": {}, "szl": {}, "thb": {}, "tjs": {}, "tnd": {}, "top": {},
	"try": {}, "ttd": {}, "twd": {}, "tzs": {}, "uah": {}, "ugx": {}, "usd": {}, "uyu": {},
	"uzs": {}, "vnd": {}, "vuv": {}, "wst": {}, "xaf": {}, "xcd": {}, "xof": {}, "xpf": {},
	"yer": {}, "zar": {}, "zmw": {},
}

const DefaultCurrencyPrecision int32 = 2

// GetCurrencySymbol returns the symbol for a given currency code
// if the code is not found, it returns the code itself
func GetCurrencySymbol(code string) string {
	if symbol, ok := CURRENCY_CODES_SYMBOLS[strings.ToLower(code)]; ok {
		return symbol
	}
	return strings.ToUpper(code)
}

// GetCurrencyPrecision returns the number of minor unit digits for a currency
func GetCurrencyPrecision(code string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(code)]; ok {
		return 0
	}
	return DefaultCurrencyPrecision
}

// IsValidCurrency reports whether code is a known ISO 4217 currency code.
// Case is ignored.
func IsValidCurrency(code string) bool {
	_, ok := isoCurrencyCodes[strings.ToLower(code)]
	return ok
}
