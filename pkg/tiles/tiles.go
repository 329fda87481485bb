// Package tiles decodes the Game Boy's native 2bpp tile format as it
// arrives in printer DATA payloads: 8x8 pixel tiles, 16 bytes each,
// two bytes per pixel row (low then high bit plane), printed 20 tiles
// across for a 160 pixel wide image.
package tiles

const (
	// TileSize is the width and height of one tile in pixels
	TileSize = 8

	// TilesPerLine is the number of tiles in one printed line
	TilesPerLine = 20

	// Width is the printed image width in pixels
	Width = TilesPerLine * TileSize

	bytesPerTile = 16

	// lineBytes is one full line of tiles (20 tiles x 16 bytes)
	lineBytes = TilesPerLine * bytesPerTile
)

// identityPalette maps each 2-bit color index to itself, lightest to
// darkest. Senders that leave the palette byte zero mean this mapping.
const identityPalette byte = 0xE4

// Canvas accumulates tile data from successive DATA packets until the
// consumer renders it on a PRINT command.
type Canvas struct {
	data []byte
}

func NewCanvas() *Canvas {
	return &Canvas{}
}

// Add appends one DATA payload to the canvas.
func (c *Canvas) Add(p []byte) {
	c.data = append(c.data, p...)
}

// Reset discards all accumulated tile data.
func (c *Canvas) Reset() {
	c.data = c.data[:0]
}

// Height returns the height in pixels of the accumulated image. Only
// complete tile lines count; a trailing partial line is not rendered.
func (c *Canvas) Height() int {
	return len(c.data) / lineBytes * TileSize
}

// Frame decodes the accumulated tiles into rows of shades, 0 (white)
// to 3 (black), applying the 2-bit palette mapping from the PRINT
// settings. A zero palette selects the identity mapping.
func (c *Canvas) Frame(palette byte) [][]uint8 {
	if palette == 0 {
		palette = identityPalette
	}

	height := c.Height()
	frame := make([][]uint8, height)
	for y := range frame {
		frame[y] = make([]uint8, Width)
	}

	tileCount := height / TileSize * TilesPerLine
	for tile := 0; tile < tileCount; tile++ {
		baseX := tile % TilesPerLine * TileSize
		baseY := tile / TilesPerLine * TileSize

		for row := 0; row < TileSize; row++ {
			low := c.data[tile*bytesPerTile+row*2]
			high := c.data[tile*bytesPerTile+row*2+1]

			for x := 0; x < TileSize; x++ {
				bit := uint8(7 - x)

				var color uint8
				if low&(1<<bit) > 0 {
					color |= 0x01
				}
				if high&(1<<bit) > 0 {
					color |= 0x02
				}

				frame[baseY+row][baseX+x] = palette >> (2 * color) & 0x03
			}
		}
	}

	return frame
}
