package devserver

import (
	"bytes"
	"hash/fnv"
	"image"
	"image/color"

	"twitline/internal/models"

	"github.com/chai2010/webp"
	"github.com/gofiber/fiber/v2"
)

// PlaceholderImage handles GET /media/placeholder/:seed. It renders a
// deterministic 256x256 webp for the given seed, so seeded avatars and
// fixtures have stable, local image URLs without an external asset host.
func (s *Server) PlaceholderImage(c *fiber.Ctx) error {
	seed := c.Params("seed")

	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	base := h.Sum32()

	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	fg := color.RGBA{R: uint8(base >> 16), G: uint8(base >> 8), B: uint8(base), A: 255}
	bg := color.RGBA{R: 240, G: 240, B: 240, A: 255}

	// 8x8 symmetric grid, identicon style.
	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			mx := bx
			if mx > 3 {
				mx = 7 - bx
			}
			on := (base>>(uint(by*4+mx)%31))&1 == 1
			for y := by * 32; y < (by+1)*32; y++ {
				for x := bx * 32; x < (bx+1)*32; x++ {
					if on {
						img.Set(x, y, fg)
					} else {
						img.Set(x, y, bg)
					}
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: 80}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewServerError("Failed to encode image", err))
	}

	c.Set("Content-Type", "image/webp")
	c.Set("Cache-Control", "public, max-age=86400")
	return c.Send(buf.Bytes())
}
