// kotatsu/attachment/placeholder.go
package attachment

import (
	"bytes"
	"encoding/base64"
	"image"
	"sync"
)

// placeholderBase64 is a small grey PNG used as the thumbnail frame for
// categories whose contents cannot be decoded without a codec (video).
const placeholderBase64 = `iVBORw0KGgoAAAANSUhEUgAAAJYAAACWCAIAAACzY+a1AAAA7klEQVR42u3RAQ0AAAzCMOQjGxnPk07Cmup5sQChEAohQiEUQiFEKIRCKIQIhVAIhRChEAqhECIUQiEUQoRCKIRCiFAIhVAIEQqhEAohQiEUQiFEKIRCKIQIhVAIhRChEAqhECIUQiEUQoRCKIRCiFAIhVAIEQqhEAohQiEUQiFEKIRCKIQIhVAIhRChEAqhECIUQiEUQoRCKIRCiFAIhVAIEQqhEAohQiEUQiFEKIRCKIQIhVAIhRChEAqhECIUQiEUQoRCKIRCiFAIhVAIEQqhECIUQiEUQoRCKIRCiFAIhVAIEQqhEAohQiHUTQO76RuV2t6E0gAAAABJRU5ErkJggg==`

var (
	placeholderOnce sync.Once
	placeholderImg  image.Image
	placeholderErr  error
)

// placeholderFrame decodes the embedded placeholder image once.
func placeholderFrame() (image.Image, error) {
	placeholderOnce.Do(func() {
		data, err := base64.StdEncoding.DecodeString(placeholderBase64)
		if err != nil {
			placeholderErr = err
			return
		}
		placeholderImg, _, placeholderErr = image.Decode(bytes.NewReader(data))
	})
	return placeholderImg, placeholderErr
}
