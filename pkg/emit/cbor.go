package emit

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

var encMode cbor.EncMode

// namespace scopes image build ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/daimatz/jvmlink/image"))

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("emit: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal encodes img in canonical CBOR, so equal images encode to equal bytes.
func Marshal(img *Image) ([]byte, error) {
	return encMode.Marshal(img)
}

// Unmarshal decodes an image encoded by Marshal.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("emit: unmarshal image: %w", err)
	}
	return &img, nil
}

// WriteImage writes the encoded image to w.
func WriteImage(w io.Writer, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadImage decodes an image from r.
func ReadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// buildID derives the image id from its content, excluding the id itself.
func buildID(img *Image) (string, error) {
	saved := img.BuildID
	img.BuildID = ""
	data, err := Marshal(img)
	img.BuildID = saved
	if err != nil {
		return "", fmt.Errorf("emit: encoding image: %w", err)
	}
	return uuid.NewSHA1(namespace, data).String(), nil
}
