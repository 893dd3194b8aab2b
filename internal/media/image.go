package media

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
)

// LoadImage decodes an image from a path or reader and reports its format
// name ("png", "jpeg", "gif").
func (l *Library) LoadImage(src any) (image.Image, string, error) {
	r, closeFn, err := l.open("image", src)
	if err != nil {
		return nil, "", err
	}
	defer closeFn()

	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	logger.Debug("Decoded %s image %v", format, img.Bounds())
	return img, format, nil
}

// LoadImage decodes an image using the default library.
func LoadImage(src any) (image.Image, string, error) {
	return Default.LoadImage(src)
}
