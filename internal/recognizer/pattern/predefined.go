package pattern

import (
	"github.com/straja-ai/ukredact/internal/entities"
)

// DefaultLanguage is the language tag every built-in recognizer is filed
// under. Ukrainian text is analyzed under this tag too.
const DefaultLanguage = "en"

// UAIBANScore is the fixed score of the Ukrainian IBAN rule.
const UAIBANScore = 0.9

// UAIBANContext are the keywords that support a Ukrainian IBAN match.
var UAIBANContext = []string{
	"рахунок", "рахунку", "рахунка", "IBAN", "iban",
	"оплата", "оплати", "банк", "банку", "банківський",
	"переказ", "перевод", "account", "payment", "transfer",
}

// UAIBAN returns the Ukrainian IBAN rule: "UA" followed by 27 digits.
func UAIBAN() Recognizer {
	return Recognizer{
		Name:     "UaIbanRecognizer",
		Entity:   entities.IBANCode,
		Language: DefaultLanguage,
		Patterns: []Pattern{{Name: "ua_iban", Regex: `\bUA\d{27}\b`, Score: UAIBANScore}},
		Context:  UAIBANContext,
	}
}

// Predefined returns the built-in recognizers for the generic pattern
// classes. Go regular expressions treat \b and \w as ASCII only, which is
// what these patterns need: every match here is ASCII.
func Predefined() []Recognizer {
	return []Recognizer{
		{
			Name:   "EmailRecognizer",
			Entity: entities.EmailAddress,
			Patterns: []Pattern{{
				Name:  "email",
				Regex: `\b[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+(?:\.[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+)*@[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}\b`,
				Score: 0.5,
			}},
			Context:  []string{"email", "e-mail", "mail", "пошта", "пошти", "імейл"},
			Validate: emailDomain,
		},
		{
			Name:   "PhoneRecognizer",
			Entity: entities.PhoneNumber,
			Patterns: []Pattern{
				{Name: "ua_international", Regex: `(?:\+|\b00)380[ \-(]*\d{2}[ \-)]*\d{3}[ \-]*\d{2}[ \-]*\d{2}\b`, Score: 0.4},
				{Name: "ua_national", Regex: `\(?\b0\d{2}\)?[ \-]?\d{3}[ \-]?\d{2}[ \-]?\d{2}\b`, Score: 0.4},
				{Name: "international", Regex: `\+(?:[1-24-9]\d{0,2}|3[0-79]\d?|38[1-9])[ \-]?\(?\d{1,4}\)?(?:[ \-]?\d{2,4}){2,4}\b`, Score: 0.4},
			},
			Context:  []string{"phone", "number", "telephone", "cell", "cellphone", "mobile", "call", "телефон", "мобільн", "номер", "дзвон"},
			Validate: phoneDigits,
		},
		{
			Name:   "CreditCardRecognizer",
			Entity: entities.CreditCard,
			Patterns: []Pattern{{
				Name:  "all_credit_cards",
				Regex: `\b(?:4\d{3}|5[0-5]\d{2}|6\d{3}|1\d{3}|3\d{3})[- ]?\d{3,4}[- ]?\d{3,4}[- ]?\d{3,5}\b`,
				Score: 0.3,
			}},
			Context:  []string{"credit", "card", "visa", "mastercard", "cc", "amex", "discover", "jcb", "diners", "maestro", "instapayment", "картк", "картц"},
			Validate: luhn,
		},
		{
			Name:   "IbanRecognizer",
			Entity: entities.IBANCode,
			Patterns: []Pattern{{
				Name:  "iban_generic",
				Regex: `\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,3})?\b`,
				Score: 0.5,
			}},
			Context:  []string{"iban", "bank", "transaction"},
			Validate: ibanChecksum,
		},
		{
			Name:   "IpRecognizer",
			Entity: entities.IPAddress,
			Patterns: []Pattern{
				{Name: "ipv4", Regex: `\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\b`, Score: 0.6},
				{Name: "ipv6", Regex: `\b(?:[0-9A-Fa-f]{1,4}:){7}[0-9A-Fa-f]{1,4}\b|\b(?:[0-9A-Fa-f]{1,4}:){1,7}:(?:[0-9A-Fa-f]{1,4}(?::[0-9A-Fa-f]{1,4}){0,6})?\b`, Score: 0.6},
			},
			Context:  []string{"ip", "ipv4", "ipv6"},
			Validate: ipAddress,
		},
		{
			Name:   "UrlRecognizer",
			Entity: entities.URL,
			Patterns: []Pattern{
				{Name: "url_scheme", Regex: `\b(?:https?|ftp)://[^\s<>"'«»]+[^\s<>"'«».,;:!?)]`, Score: 0.6},
				{Name: "url_www", Regex: `\bwww\.[^\s<>"'«»]+[^\s<>"'«».,;:!?)]`, Score: 0.5},
			},
			Context: []string{"url", "website", "link", "сайт", "посилання"},
		},
		{
			Name:   "CryptoRecognizer",
			Entity: entities.Crypto,
			Patterns: []Pattern{{
				Name:  "crypto",
				Regex: `\b(?:bc1[02-9ac-hj-np-z]{11,71}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`,
				Score: 0.5,
			}},
			Context:  []string{"wallet", "btc", "bitcoin", "crypto", "гаманець", "гаманця", "біткоїн"},
			Validate: bitcoinAddress,
		},
		{
			Name:   "DateRecognizer",
			Entity: entities.DateTime,
			Patterns: []Pattern{
				{Name: "iso_datetime", Regex: `\b\d{4}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])[T ](?:[01]\d|2[0-3]):[0-5]\d(?::[0-5]\d)?\b`, Score: 0.6},
				{Name: "yyyy-mm-dd", Regex: `\b\d{4}[-/](?:0?[1-9]|1[0-2])[-/](?:0?[1-9]|[12]\d|3[01])\b`, Score: 0.6},
				{Name: "dd.mm.yyyy", Regex: `\b(?:0?[1-9]|[12]\d|3[01])\.(?:0?[1-9]|1[0-2])\.(?:\d{4}|\d{2})\b`, Score: 0.6},
				{Name: "dd/mm/yyyy", Regex: `\b(?:0?[1-9]|[12]\d|3[01])/(?:0?[1-9]|1[0-2])/\d{4}\b`, Score: 0.6},
				{Name: "mm/dd/yyyy", Regex: `\b(?:0?[1-9]|1[0-2])/(?:0?[1-9]|[12]\d|3[01])/\d{4}\b`, Score: 0.6},
				{Name: "dd-mm-yyyy", Regex: `\b(?:0?[1-9]|[12]\d|3[01])-(?:0?[1-9]|1[0-2])-\d{4}\b`, Score: 0.6},
			},
			Context: []string{"date", "birthday", "дата", "народж"},
		},
	}
}

// phoneDigits rejects matches with too few or too many digits for a real
// number.
func phoneDigits(match string) (bool, bool) {
	n := len(onlyDigits(match))
	if n < 9 || n > 15 {
		return false, true
	}
	return false, false
}
