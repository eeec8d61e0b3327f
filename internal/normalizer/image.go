package normalizer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	// Register decoders for the formats receipts arrive in.
	_ "image/jpeg"
)

// preprocessImage runs the deterministic cleanup sequence applied before
// OCR: grayscale, deskew, adaptive threshold, upscale-if-small. The output
// is PNG-encoded for the engine.
func preprocessImage(payload []byte, targetHeight int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := toGrayscale(src)
	gray = deskew(gray)
	gray = threshold(gray)
	gray = upscaleIfSmall(gray, targetHeight)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// toGrayscale converts any image to 8-bit grayscale.
func toGrayscale(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return gray
}

// deskew estimates the slant of the text block from the horizontal drift of
// dark-pixel centroids and shears the image to compensate. Images with no
// measurable slant come back unchanged.
func deskew(src *image.Gray) *image.Gray {
	slope := estimateSkew(src)
	if slope == 0 {
		return src
	}

	bounds := src.Bounds()
	h := bounds.Dy()
	out := image.NewGray(bounds)
	// Fill with white so sheared-in edges do not read as ink.
	for i := range out.Pix {
		out.Pix[i] = 0xFF
	}
	mid := h / 2
	for y := 0; y < h; y++ {
		shift := int(slope * float64(y-mid))
		for x := 0; x < bounds.Dx(); x++ {
			sx := x + shift
			if sx < 0 || sx >= bounds.Dx() {
				continue
			}
			out.SetGray(x, bounds.Min.Y+y, src.GrayAt(bounds.Min.X+sx, bounds.Min.Y+y))
		}
	}
	return out
}

// estimateSkew fits a line through the per-row centroid of dark pixels and
// returns its slope in pixels per row. Slopes below the noise floor or rows
// without enough ink yield zero.
func estimateSkew(src *image.Gray) float64 {
	bounds := src.Bounds()
	h := bounds.Dy()
	if h < 16 {
		return 0
	}

	var n, sumY, sumX, sumYY, sumYX float64
	for y := 0; y < h; y++ {
		var count, sum int
		for x := 0; x < bounds.Dx(); x++ {
			if src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y < 0x80 {
				count++
				sum += x
			}
		}
		if count < 4 {
			continue
		}
		cx := float64(sum) / float64(count)
		fy := float64(y)
		n++
		sumY += fy
		sumX += cx
		sumYY += fy * fy
		sumYX += fy * cx
	}
	if n < 8 {
		return 0
	}

	denom := n*sumYY - sumY*sumY
	if denom == 0 {
		return 0
	}
	slope := (n*sumYX - sumY*sumX) / denom
	if slope > -0.01 && slope < 0.01 {
		return 0
	}
	// Clamp: anything steeper than ~15 degrees is layout, not skew.
	if slope > 0.25 {
		slope = 0.25
	}
	if slope < -0.25 {
		slope = -0.25
	}
	return slope
}

// threshold applies Otsu's method to binarize the grayscale image.
func threshold(src *image.Gray) *image.Gray {
	var hist [256]int
	for _, p := range src.Pix {
		hist[p]++
	}
	total := len(src.Pix)
	if total == 0 {
		return src
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var maxVar float64
	cut := 127
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > maxVar {
			maxVar = between
			cut = i
		}
	}

	out := image.NewGray(src.Bounds())
	for i, p := range src.Pix {
		if int(p) > cut {
			out.Pix[i] = 0xFF
		} else {
			out.Pix[i] = 0x00
		}
	}
	return out
}

// upscaleIfSmall scales the image up to targetHeight using nearest-neighbor
// when it is shorter than that. Larger images are left alone; OCR engines
// handle oversized input better than interpolation artifacts.
func upscaleIfSmall(src *image.Gray, targetHeight int) *image.Gray {
	bounds := src.Bounds()
	h := bounds.Dy()
	if targetHeight <= 0 || h == 0 || h >= targetHeight {
		return src
	}

	scale := float64(targetHeight) / float64(h)
	w := int(float64(bounds.Dx()) * scale)
	out := image.NewGray(image.Rect(0, 0, w, targetHeight))
	for y := 0; y < targetHeight; y++ {
		sy := int(float64(y) / scale)
		for x := 0; x < w; x++ {
			sx := int(float64(x) / scale)
			out.SetGray(x, y, src.GrayAt(bounds.Min.X+sx, bounds.Min.Y+sy))
		}
	}
	return out
}
