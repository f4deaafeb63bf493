package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/acotrina/fise-coupon-service/internal/domain"
)

// Body length bounds. Anything outside is rejected before any regex runs so
// a hostile sender cannot make classification expensive.
const (
	MinBodyLength = 10
	MaxBodyLength = 500
)

var (
	erradoRe        = regexp.MustCompile(`(?i)\bERRADO\b`)
	valeProcesadoRe = regexp.MustCompile(`(?i)\bVALE PROCESADO\b`)

	// Date and time of a processed notice, extracted together: DD/MM/YYYY
	// followed by a 24h HH:MM.
	fechaHoraRe = regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\s+((?:[01]?\d|2[0-3]):[0-5]\d)\b`)

	dniRe = regexp.MustCompile(`(?i)\bDNI\s*[:=]?\s*(\d{8})\b`)

	// Coupon codes have varied between 6 and 20 digits across message
	// formats; the wider bound is accepted here. See README, known limitations.
	cuponRe = regexp.MustCompile(`(?i)\bCUPON\s*[:=]?\s*(\d{6,20})\b`)

	// Partner code: business-unit prefix C plus 8-12 digits, preferably
	// labeled "S/N", otherwise a bare token anywhere in the body.
	snLabeledRe = regexp.MustCompile(`(?i)\bS\s*/?\s*N\s*[:\s]\s*(C\d{8,12})\b`)
	snBareRe    = regexp.MustCompile(`\b(C\d{8,12})\b`)

	importeRe = regexp.MustCompile(`(?i)IMPORTE\s*[:=]?\s*(?:S\s*/\s*\.?)?\s*([0-9]{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})|[0-9]+)`)
)

// Phrases that only the validating entity uses. They break the tie when the
// sender's role is unknown and both roles share the same DNI:/CUPON: phrasing.
var entityPhrases = []string{
	"IMPORTE:",
	"ERRADO",
	"VALE PROCESADO",
	"EL CUPON SE PROCESO CORRECTAMENTE",
}

// Parse classifies one reassembled inbound body. The sender role, when
// known, decides between a driver's coupon request and an entity's valid
// response; content heuristics are the fallback only, since both roles can
// send an identical "DNI: ... CUPON: ..." body.
func Parse(body string, role domain.SenderRole) domain.ParsedMessage {
	msg := domain.ParsedMessage{Kind: domain.KindUnrecognized, Raw: body}

	if n := utf8.RuneCountInString(body); n < MinBodyLength || n > MaxBodyLength {
		return msg
	}

	if erradoRe.MatchString(body) {
		msg.Kind = domain.KindEntityErrorResponse
		return msg
	}

	if valeProcesadoRe.MatchString(body) {
		msg.Kind = domain.KindEntityProcessedResponse
		fields := strings.Fields(body)
		if len(fields) > 0 {
			msg.Cupon = fields[len(fields)-1]
		}
		if m := fechaHoraRe.FindStringSubmatch(body); m != nil {
			msg.Fecha = m[1]
			msg.Hora = m[2]
		}
		return msg
	}

	dni := firstGroup(dniRe, body)
	cupon := firstGroup(cuponRe, body)
	if dni == "" || cupon == "" {
		return msg
	}

	msg.DNI = dni
	msg.Cupon = cupon
	msg.SN = extractSN(body)

	if rawMonto := firstGroup(importeRe, body); rawMonto != "" {
		msg.Monto = NormalizeNumber(rawMonto)
		msg.HasMonto = true
	}

	if isEntityMessage(role, body) {
		msg.Kind = domain.KindEntityValidResponse
		msg.Descripcion = firstLine(body)
	} else {
		msg.Kind = domain.KindCouponRequest
	}
	return msg
}

func isEntityMessage(role domain.SenderRole, body string) bool {
	switch role {
	case domain.RoleEntity:
		return true
	case domain.RoleDriver:
		return false
	}
	upper := strings.ToUpper(body)
	for _, phrase := range entityPhrases {
		if strings.Contains(upper, phrase) {
			return true
		}
	}
	return false
}

func extractSN(body string) string {
	if sn := firstGroup(snLabeledRe, body); sn != "" {
		return sn
	}
	return firstGroup(snBareRe, body)
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func firstLine(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	return strings.TrimSpace(line)
}

// NormalizeNumber parses a numeric string whose thousands and decimal
// separators may be either '.' or ','. Whichever separator occurs later in
// the string is taken as the decimal separator and the other is stripped.
// Unparsable input yields 0.0. The rule is applied uniformly, independent of
// locale.
func NormalizeNumber(s string) float64 {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	var decimalSep byte
	switch {
	case lastDot == -1 && lastComma == -1:
		decimalSep = 0
	case lastDot > lastComma:
		decimalSep = '.'
	default:
		decimalSep = ','
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == decimalSep:
			b.WriteByte('.')
		}
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0.0
	}
	return v
}
