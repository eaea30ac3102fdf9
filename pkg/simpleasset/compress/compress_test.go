package compress_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/compress"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func decodeBounds(t *testing.T, content []byte) image.Rectangle {
	t.Helper()

	img, _, err := image.Decode(bytes.NewReader(content))
	require.NoError(t, err)
	return img.Bounds()
}

func TestImageCompress(t *testing.T) {
	c := compress.NewImage()

	params := simpleasset.CompressParams{
		MaxWidth:  720,
		MaxHeight: 1280,
		Quality:   75,
	}

	t.Run("oversized image is fit into the box", func(t *testing.T) {
		content := encodePNG(t, 1600, 900)

		out, err := c.Compress(content, "png", params)
		require.NoError(t, err)

		bounds := decodeBounds(t, out)
		assert.LessOrEqual(t, bounds.Dx(), 720)
		assert.LessOrEqual(t, bounds.Dy(), 1280)
	})

	t.Run("small image is never upscaled", func(t *testing.T) {
		content := encodePNG(t, 100, 80)

		out, err := c.Compress(content, "png", params)
		require.NoError(t, err)

		bounds := decodeBounds(t, out)
		assert.Equal(t, 100, bounds.Dx())
		assert.Equal(t, 80, bounds.Dy())
	})

	t.Run("jpg extension accepts jpeg content", func(t *testing.T) {
		content := encodeJPEG(t, 200, 200)

		out, err := c.Compress(content, "jpg", params)
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	})

	t.Run("quality reduces output size", func(t *testing.T) {
		content := encodePNG(t, 640, 480)

		high, err := c.Compress(content, "jpg", simpleasset.CompressParams{Quality: 95})
		require.NoError(t, err)
		low, err := c.Compress(content, "jpg", simpleasset.CompressParams{Quality: 10})
		require.NoError(t, err)

		assert.Less(t, len(low), len(high))
	})

	t.Run("unsupported extension is rejected", func(t *testing.T) {
		_, err := c.Compress([]byte("not an image"), "exe", params)
		assert.Error(t, err)
	})

	t.Run("garbage content is rejected", func(t *testing.T) {
		_, err := c.Compress([]byte("not an image"), "png", params)
		assert.Error(t, err)
	})
}

func TestNoopCompress(t *testing.T) {
	c := compress.NewNoop()

	content := []byte("anything")
	out, err := c.Compress(content, "bin", simpleasset.CompressParams{})
	require.NoError(t, err)
	assert.Equal(t, content, out)
}
