package vrm

import (
	"bytes"
	"compress/zlib"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

const (
	TEXTURE_FORMAT_R       = 0
	TEXTURE_FORMAT_RGB     = 4
	TEXTURE_FORMAT_RGBA    = 6
	TEXTURE_FORMAT_ENCODED = 12
)

const (
	TEXTURE_COMPRESSED_NONE = 0
	TEXTURE_COMPRESSED_ZLIB = 1
)

var errUnsupportedImage = errors.New("texture: unsupported image type")

// Texture is an image resource referenced by materials.
// Decoded textures keep zlib compressed RGBA pixels, undecoded ones keep
// the original encoded bytes with their mime type.
type Texture struct {
	Id         int32     `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType,omitempty"`
	Size       [2]uint64 `json:"size"`
	Format     uint16    `json:"format"`
	Compressed uint16    `json:"compressed"`
	Data       []byte    `json:"-"`

	disposed bool
}

func CompressImage(buf []byte) []byte {
	var bt []byte
	bf := bytes.NewBuffer(bt)
	w := zlib.NewWriter(bf)
	w.Write(buf)
	w.Close()
	return bf.Bytes()
}

func DecompressImage(src []byte) ([]byte, error) {
	bf := bytes.NewBuffer(src)
	r, er := zlib.NewReader(bf)
	if er != nil {
		return nil, er
	}
	return io.ReadAll(r)
}

func decodeImage(mime string, rd io.Reader) (image.Image, error) {
	switch mime {
	case "image/png":
		return png.Decode(rd)
	case "image/jpg", "image/jpeg":
		return jpeg.Decode(rd)
	case "image/webp":
		return webp.Decode(rd)
	case "image/gif":
		return gif.Decode(rd)
	case "image/bmp":
		return bmp.Decode(rd)
	case "image/tiff":
		return tiff.Decode(rd)
	case "image/tga", "image/x-tga":
		return tga.Decode(rd)
	}
	return nil, errUnsupportedImage
}

// NewTexture wraps encoded image bytes. With decode set the image is
// decoded right away and stored as compressed RGBA.
func NewTexture(id int32, name, mime string, data []byte, decode bool) (*Texture, error) {
	if !decode {
		return &Texture{
			Id:       id,
			Name:     name,
			MimeType: mime,
			Format:   TEXTURE_FORMAT_ENCODED,
			Data:     data,
		}, nil
	}
	img, err := decodeImage(mime, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	tex := CreateTextureFromImage(img, name)
	tex.Id = id
	tex.MimeType = mime
	return tex, nil
}

func CreateTextureFromImage(img image.Image, name string) *Texture {
	bd := img.Bounds()
	buf := make([]byte, 0, bd.Dx()*bd.Dy()*4)

	for y := bd.Min.Y; y < bd.Max.Y; y++ {
		for x := bd.Min.X; x < bd.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			buf = append(buf, c.R, c.G, c.B, c.A)
		}
	}
	return &Texture{
		Name:       name,
		Format:     TEXTURE_FORMAT_RGBA,
		Size:       [2]uint64{uint64(bd.Dx()), uint64(bd.Dy())},
		Compressed: TEXTURE_COMPRESSED_ZLIB,
		Data:       CompressImage(buf),
	}
}

// Image returns the texture pixels.
func (tex *Texture) Image() (image.Image, error) {
	if tex.disposed {
		return nil, errors.New("texture: disposed")
	}
	if tex.Format == TEXTURE_FORMAT_ENCODED {
		return decodeImage(tex.MimeType, bytes.NewReader(tex.Data))
	}
	w := int(tex.Size[0])
	h := int(tex.Size[1])
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	data := tex.Data
	var sz int
	switch tex.Format {
	case TEXTURE_FORMAT_RGB:
		sz = 3
	case TEXTURE_FORMAT_RGBA:
		sz = 4
	case TEXTURE_FORMAT_R:
		sz = 1
	default:
		return nil, errUnsupportedImage
	}
	if tex.Compressed == TEXTURE_COMPRESSED_ZLIB {
		var err error
		if data, err = DecompressImage(data); err != nil {
			return nil, err
		}
	}
	if len(data) < w*h*sz {
		return nil, io.ErrUnexpectedEOF
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := y*w*sz + x*sz
			var c color.NRGBA
			switch sz {
			case 4:
				c = color.NRGBA{R: data[p], G: data[p+1], B: data[p+2], A: data[p+3]}
			case 3:
				c = color.NRGBA{R: data[p], G: data[p+1], B: data[p+2], A: 255}
			case 1:
				c = color.NRGBA{R: data[p], G: data[p], B: data[p], A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

func (tex *Texture) Dispose() {
	tex.Data = nil
	tex.disposed = true
}

func (tex *Texture) Disposed() bool {
	return tex.disposed
}
