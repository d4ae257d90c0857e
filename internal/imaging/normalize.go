package imaging

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
)

// Normalize decodes a JPEG frame and applies the EXIF-orientation transform
// needed to present it upright, returning the corrected pixel buffer
// re-encoded as JPEG. Frames with no Exif data (orientationNormal) or an
// unparsable Exif segment pass through unchanged.
func Normalize(data []byte) ([]byte, error) {
	orientation := readOrientation(data)
	if orientation == orientationNormal {
		return data, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	rotated := applyOrientation(img, orientation)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, rotated, &jpeg.Options{Quality: 92}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case orientationMirrorH:
		return flipH(img)
	case orientationRotate180:
		return rotate180(img)
	case orientationMirrorV:
		return flipV(img)
	case orientationMirrorHRotate:
		return rotate270(flipH(img))
	case orientationRotate90:
		return rotate90(img)
	case orientationMirrorVRotate:
		return rotate90(flipH(img))
	case orientationRotate270:
		return rotate270(img)
	default:
		return img
	}
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

func rotate90(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(h-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func rotate270(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(y, w-1-x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func rotate180(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(w-1-x, h-1-y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func flipH(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(w-1-x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

func flipV(img image.Image) image.Image {
	src := toRGBA(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, h-1-y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
