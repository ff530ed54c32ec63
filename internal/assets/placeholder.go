package assets

import (
	"fmt"
	"html"
)

// Placeholder generates stand-in artwork for a rhyme with no stored asset.
// The visual carries the code, name and page count so proofs stay readable.
func Placeholder(code, name string, pages float64) []byte {
	h := 594.0
	if pages <= 0.5 {
		h = 297
	}
	return []byte(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 420 %[1]g">
  <rect x="0" y="0" width="420" height="%[1]g" fill="#f7f7f7"/>
  <rect x="8" y="8" width="404" height="%[2]g" fill="none" stroke="#888888" stroke-width="2"/>
  <text x="210" y="%[3]g" font-family="sans-serif" font-size="28" text-anchor="middle" fill="#444444">%[4]s</text>
  <text x="210" y="%[5]g" font-family="sans-serif" font-size="18" text-anchor="middle" fill="#666666">%[6]s</text>
  <text x="210" y="%[7]g" font-family="sans-serif" font-size="14" text-anchor="middle" fill="#999999">%[8]g page(s)</text>
</svg>`,
		h, h-16, h*0.42, html.EscapeString(name), h*0.42+32, html.EscapeString(code), h*0.42+58, pages))
}
