package imaging

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/fieldpunch/attendance-backend/internal/faceservice"
)

// PaddedCrop implements the group-mode crop step of §4.4: pads a detected
// face box by 25% on each side, clips to image bounds, then re-encodes the
// crop at 600x600.
func PaddedCrop(data []byte, box faceservice.Box) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	padX := box.Width / 4
	padY := box.Height / 4

	bounds := img.Bounds()
	x0 := clip(box.X-padX, bounds.Min.X, bounds.Max.X)
	y0 := clip(box.Y-padY, bounds.Min.Y, bounds.Max.Y)
	x1 := clip(box.X+box.Width+padX, bounds.Min.X, bounds.Max.X)
	y1 := clip(box.Y+box.Height+padY, bounds.Min.Y, bounds.Max.Y)
	if x1 <= x0 || y1 <= y0 {
		x0, y0, x1, y1 = bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y
	}

	cropRect := image.Rect(x0, y0, x1, y1)
	cropped := toRGBA(img).SubImage(cropRect)

	resized := resize(cropped, 600, 600)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, resized, &jpeg.Options{Quality: 92}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resize does a nearest-neighbour resize; the collection's own encoder
// tolerates the quality loss and this avoids pulling in an image-resampling
// dependency for a single call site.
func resize(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*sh/h
		for x := 0; x < w; x++ {
			sx := b.Min.X + x*sw/w
			out.Set(x, y, src.At(sx, sy))
		}
	}
	return out
}
