package imagesearch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"biteboard/pkg/logx"
)

// DefaultStripHeight is the height of a combined image strip.
const DefaultStripHeight = 300

const maxImageBytes = 8 << 20

var ErrNoImages = errors.New("no images could be loaded")

// Download fetches and decodes one image.
func Download(ctx context.Context, client *http.Client, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch image %s: http %d", url, resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", url, err)
	}
	return img, nil
}

// Combine lays the images out left to right, each scaled to height while
// keeping its aspect ratio, and returns the strip as PNG.
func Combine(images []image.Image, height int) ([]byte, error) {
	if height <= 0 {
		height = DefaultStripHeight
	}
	widths := make([]int, 0, len(images))
	total := 0
	kept := images[:0:0]
	for _, img := range images {
		b := img.Bounds()
		if b.Dx() <= 0 || b.Dy() <= 0 {
			continue
		}
		w := max(1, b.Dx()*height/b.Dy())
		widths = append(widths, w)
		kept = append(kept, img)
		total += w
	}
	if len(kept) == 0 {
		return nil, ErrNoImages
	}

	canvas := image.NewRGBA(image.Rect(0, 0, total, height))
	x := 0
	for i, img := range kept {
		dst := image.Rect(x, 0, x+widths[i], height)
		draw.ApproxBiLinear.Scale(canvas, dst, img, img.Bounds(), draw.Over, nil)
		x += widths[i]
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CombineURLs downloads every URL (skipping failures) and combines the result.
func CombineURLs(ctx context.Context, client *http.Client, urls []string, height int, log logx.Logger) ([]byte, error) {
	var images []image.Image
	for _, u := range urls {
		img, err := Download(ctx, client, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("image skipped", logx.String("url", u), logx.Err(err))
			continue
		}
		images = append(images, img)
	}
	return Combine(images, height)
}
