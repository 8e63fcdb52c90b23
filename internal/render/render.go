// Package render produces the barcode and QR images embedded into label
// previews and print sheets, as base64 PNG data URLs.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/qr"
)

// Renderer turns encoded payload strings into embeddable images. Services
// depend on this interface so tests can substitute a stub.
type Renderer interface {
	BarcodePNG(value string, width, height int) (string, error)
	QRPNG(value string, size int) (string, error)
}

// ImageRenderer is the production Renderer, producing Code128 barcodes and
// medium-redundancy QR codes.
type ImageRenderer struct{}

func NewImageRenderer() *ImageRenderer {
	return &ImageRenderer{}
}

func (r *ImageRenderer) BarcodePNG(value string, width, height int) (string, error) {
	if value == "" {
		return "", fmt.Errorf("barcode value is empty")
	}
	if width < 1 {
		width = 200
	}
	if height < 1 {
		height = 60
	}

	code, err := code128.Encode(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode barcode: %w", err)
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return "", fmt.Errorf("failed to scale barcode: %w", err)
	}
	return encodeDataURL(scaled)
}

func (r *ImageRenderer) QRPNG(value string, size int) (string, error) {
	if value == "" {
		return "", fmt.Errorf("qr value is empty")
	}
	if size < 21 {
		size = 120
	}

	code, err := qr.Encode(value, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr: %w", err)
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return "", fmt.Errorf("failed to scale qr: %w", err)
	}
	return encodeDataURL(scaled)
}

func encodeDataURL(img barcode.Barcode) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
