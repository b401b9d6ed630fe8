package upload

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"mime/multipart"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/digiworld/backoffice/internal/pkg/apperr"
)

const (
	// MaxProofBytes bounds the raw upload
	MaxProofBytes = 8 << 20
	// MaxProofEdge is the longest side kept after normalization
	MaxProofEdge = 1600
	proofQuality = 85
)

// Proof is a normalized payment screenshot ready for storage.
type Proof struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// PrepareProof validates an uploaded screenshot and re-encodes it as JPEG.
// Every failure is a validation error, the payment is rejected before persistence.
func PrepareProof(fh *multipart.FileHeader) (*Proof, error) {
	if fh.Size > MaxProofBytes {
		return nil, apperr.Validation("screenshot exceeds %d MB", MaxProofBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Validation("screenshot could not be read")
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, MaxProofBytes+1))
	if err != nil {
		return nil, apperr.Validation("screenshot could not be read")
	}
	return NormalizeProof(fh.Filename, raw)
}

// NormalizeProof sniffs, decodes, orients and downsizes an image.
func NormalizeProof(filename string, raw []byte) (*Proof, error) {
	if len(raw) > MaxProofBytes {
		return nil, apperr.Validation("screenshot exceeds %d MB", MaxProofBytes>>20)
	}
	head := raw
	if len(head) > 512 {
		head = head[:512]
	}
	if _, err := ValidateImageBySniff(filename, head); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Validation("screenshot is not a readable image")
	}

	img = fit(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(proofQuality)); err != nil {
		return nil, fmt.Errorf("encode proof: %w", err)
	}

	b := img.Bounds()
	return &Proof{Data: buf.Bytes(), ContentType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}

func fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= MaxProofEdge && b.Dy() <= MaxProofEdge {
		return img
	}
	return imaging.Fit(img, MaxProofEdge, MaxProofEdge, imaging.Lanczos)
}
