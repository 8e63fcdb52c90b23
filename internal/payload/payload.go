// Package payload builds the strings encoded into barcode and QR images.
// The image renderers are consumers of these values; the format here is a
// strict contract scanners downstream depend on.
package payload

import (
	"fmt"
	"strings"

	"github.com/eyepatch-3097/labelz-deploy/internal/layout"
)

// QR payload modes.
const (
	QRModeSimple = "simple"
	QRModeJSON   = "json"
)

// Keys never included in a JSON QR payload even if a template defines them.
var excludeQRKeys = map[string]bool{
	"serial":  true,
	"barcode": true,
	"qrcode":  true,
}

// Serial returns the 1-based, zero-padded serial for the given label index.
// Padding is at least 3 digits and grows with the batch quantity, so a
// 1500-label batch gets 4-digit serials.
func Serial(index, quantity int) string {
	width := len(fmt.Sprint(quantity))
	if width < 3 {
		width = 3
	}
	return fmt.Sprintf("%0*d", width, index)
}

// BarcodeValue is the exact string encoded into a barcode image: the EAN,
// GS1 and serial concatenated with no delimiter.
func BarcodeValue(ean, gs1, serial string) string {
	return strings.TrimSpace(ean) + strings.TrimSpace(gs1) + serial
}

// QRValue builds the QR-encoded string. Simple mode mirrors the barcode
// contract; JSON mode emits a compact object with the product codes and
// every user-input field's current value.
func QRValue(mode, ean, gs1, serial string, fieldValues map[string]string, items []layout.Item) string {
	if strings.ToLower(mode) == QRModeJSON {
		return jsonPayload(ean, gs1, fieldValues, items)
	}
	return BarcodeValue(ean, gs1, serial)
}

func jsonPayload(ean, gs1 string, fieldValues map[string]string, items []layout.Item) string {
	// Hand-assembled to keep ean/gs1 first and field keys in template order;
	// encoding/json would sort map keys.
	var b strings.Builder
	b.WriteByte('{')
	writeJSONPair(&b, "ean", strings.TrimSpace(ean))
	b.WriteByte(',')
	writeJSONPair(&b, "gs1", strings.TrimSpace(gs1))

	seen := make(map[string]bool)
	for _, it := range items {
		key := strings.TrimSpace(it.Key)
		if key == "" || seen[key] {
			continue
		}
		if it.IsSpecial() {
			continue
		}
		if excludeQRKeys[strings.ToLower(key)] {
			continue
		}
		seen[key] = true
		b.WriteByte(',')
		writeJSONPair(&b, key, strings.TrimSpace(fieldValues[key]))
	}
	b.WriteByte('}')
	return b.String()
}

func writeJSONPair(b *strings.Builder, key, value string) {
	b.WriteString(jsonString(key))
	b.WriteByte(':')
	b.WriteString(jsonString(value))
}

func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(fmt.Sprintf(`\u%04x`, r))
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
