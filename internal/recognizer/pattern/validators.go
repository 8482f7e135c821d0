package pattern

import (
	"crypto/sha256"
	"math/big"
	"net/netip"
	"strings"
	"unicode"
)

// luhn validates card numbers; separators are ignored.
func luhn(match string) (bool, bool) {
	digits := onlyDigits(match)
	if len(digits) < 12 || len(digits) > 19 {
		return false, true
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0, true
}

// ibanLengths holds the fixed account length per country for the formats
// most often seen in Ukrainian documents. Unknown countries only get the
// checksum test.
var ibanLengths = map[string]int{
	"UA": 29, "PL": 28, "DE": 22, "GB": 22, "FR": 27, "LT": 20, "LV": 21,
	"EE": 20, "CZ": 24, "SK": 24, "HU": 28, "RO": 24, "MD": 24, "AT": 20,
	"NL": 18, "BE": 16, "IT": 27, "ES": 24, "CH": 21, "CY": 28, "GE": 22,
}

// ibanChecksum applies ISO 7064 mod 97-10.
func ibanChecksum(match string) (bool, bool) {
	s := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(match))
	if len(s) < 15 || len(s) > 34 {
		return false, true
	}
	if want, ok := ibanLengths[s[:2]]; ok && len(s) != want {
		return false, true
	}
	rearranged := s[4:] + s[:4]
	var b strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteString(itoa(int(r-'A') + 10))
		default:
			return false, true
		}
	}
	n, ok := new(big.Int).SetString(b.String(), 10)
	if !ok {
		return false, true
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1, true
}

func itoa(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

// emailDomain accepts addresses whose top-level domain is alphabetic.
func emailDomain(match string) (bool, bool) {
	at := strings.LastIndexByte(match, '@')
	if at < 1 {
		return false, true
	}
	domain := match[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	if dot < 1 || dot == len(domain)-1 {
		return false, true
	}
	tld := domain[dot+1:]
	if len(tld) < 2 || len(tld) > 24 {
		return false, true
	}
	for _, r := range tld {
		if !unicode.IsLetter(r) {
			return false, true
		}
	}
	return true, true
}

// ipAddress rejects matches that do not parse as an address.
func ipAddress(match string) (bool, bool) {
	if _, err := netip.ParseAddr(match); err != nil {
		return false, true
	}
	// A parseable address keeps its pattern score.
	return false, false
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// bitcoinAddress checks Base58Check (P2PKH/P2SH) or bech32 (segwit)
// encodings.
func bitcoinAddress(match string) (bool, bool) {
	if strings.HasPrefix(strings.ToLower(match), "bc1") {
		return bech32Valid(strings.ToLower(match)), true
	}
	return base58CheckValid(match), true
}

func base58CheckValid(s string) bool {
	n := new(big.Int)
	radix := big.NewInt(58)
	for _, r := range s {
		idx := strings.IndexRune(base58Alphabet, r)
		if idx < 0 {
			return false
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(idx)))
	}
	decoded := n.Bytes()
	for _, r := range s {
		if r != '1' {
			break
		}
		decoded = append([]byte{0}, decoded...)
	}
	if len(decoded) != 25 {
		return false
	}
	first := sha256.Sum256(decoded[:21])
	second := sha256.Sum256(first[:])
	for i := 0; i < 4; i++ {
		if second[i] != decoded[21+i] {
			return false
		}
	}
	return true
}

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

func bech32Valid(s string) bool {
	pos := strings.LastIndexByte(s, '1')
	if pos < 1 || pos+7 > len(s) || len(s) > 90 {
		return false
	}
	hrp := s[:pos]
	values := make([]int, 0, len(hrp)*2+1+len(s)-pos-1)
	for _, c := range hrp {
		values = append(values, int(c>>5))
	}
	values = append(values, 0)
	for _, c := range hrp {
		values = append(values, int(c&31))
	}
	for _, c := range s[pos+1:] {
		idx := strings.IndexRune(bech32Charset, c)
		if idx < 0 {
			return false
		}
		values = append(values, idx)
	}
	chk := bech32Polymod(values)
	// bech32 (witness v0) or bech32m (v1+)
	return chk == 1 || chk == 0x2bc830a3
}

func bech32Polymod(values []int) int {
	gen := []int{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := 1
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ v
		for i := 0; i < 5; i++ {
			if (top>>i)&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
