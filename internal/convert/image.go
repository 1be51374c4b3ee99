package convert

import (
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp" // WebP decode support for image.Decode

	"github.com/mani-django09/smallpdf.us-sub000/internal/errs"
	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

// imageQualitySettings maps a compression level to per-codec parameters.
var imageQualitySettings = map[string]struct {
	quality int // JPEG / WebP quality
	pngLvl  png.CompressionLevel
}{
	"light":    {85, png.BestSpeed},
	"balanced": {75, png.DefaultCompression},
	"maximum":  {60, png.BestCompression},
}

// compressImage re-encodes an image in its own format at reduced quality.
type compressImage struct{}

func (s *compressImage) Operation() job.Operation { return job.OpCompressImage }

func (s *compressImage) ValidateOptions(o *job.Options) error {
	if o.Quality == "" {
		o.Quality = "balanced"
	}
	if _, ok := imageQualitySettings[o.Quality]; !ok {
		return errs.New(errs.CodeValidation, "invalid quality: %s", o.Quality)
	}
	if o.Level != "" || len(o.Pages) > 0 || o.PageSize != "" || o.Orientation != "" {
		return errs.New(errs.CodeValidation, "unexpected option for %s", s.Operation())
	}
	return nil
}

func (s *compressImage) ConvertFile(ctx context.Context, input job.StoredFile, seq int, o job.Options, outDir string) (Result, error) {
	img, format, err := decodeImage(input)
	if err != nil {
		return Result{}, err
	}

	settings := imageQualitySettings[o.Quality]
	name := "compressed-" + input.Name
	out := filepath.Join(outDir, name)

	f, err := os.Create(out)
	if err != nil {
		return Result{}, errs.Wrap(errs.CodeStorage, err, "failed to create output file")
	}

	var mime string
	switch format {
	case "jpeg":
		mime = "image/jpeg"
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: settings.quality})
	case "webp":
		mime = "image/webp"
		err = webp.Encode(f, img, &webp.Options{Quality: float32(settings.quality)})
	default:
		mime = "image/png"
		enc := png.Encoder{CompressionLevel: settings.pngLvl}
		err = enc.Encode(f, img)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(out)
		return Result{}, errs.Wrap(errs.CodeConversion, err, "failed to compress %s", input.Name)
	}

	sf, err := storedImage(out, name, mime)
	if err != nil {
		return Result{}, err
	}
	return Result{Files: []job.StoredFile{sf}}, nil
}

// convertImage changes image format: WebP→PNG or PNG→WebP.
type convertImage struct {
	op job.Operation
}

const webpEncodeQuality = 80

func (s *convertImage) Operation() job.Operation { return s.op }

func (s *convertImage) ValidateOptions(o *job.Options) error {
	return noOptions(o)
}

func (s *convertImage) ConvertFile(ctx context.Context, input job.StoredFile, seq int, o job.Options, outDir string) (Result, error) {
	img, _, err := decodeImage(input)
	if err != nil {
		return Result{}, err
	}

	stem := strings.TrimSuffix(input.Name, filepath.Ext(input.Name))

	var name, mime string
	if s.op == job.OpWebpToPNG {
		name, mime = stem+".png", "image/png"
	} else {
		name, mime = stem+".webp", "image/webp"
	}
	out := filepath.Join(outDir, name)

	f, err := os.Create(out)
	if err != nil {
		return Result{}, errs.Wrap(errs.CodeStorage, err, "failed to create output file")
	}
	if s.op == job.OpWebpToPNG {
		err = png.Encode(f, img)
	} else {
		err = webp.Encode(f, img, &webp.Options{Quality: webpEncodeQuality})
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(out)
		return Result{}, errs.Wrap(errs.CodeConversion, err, "failed to convert %s", input.Name)
	}

	sf, err := storedImage(out, name, mime)
	if err != nil {
		return Result{}, err
	}
	return Result{Files: []job.StoredFile{sf}}, nil
}

func decodeImage(input job.StoredFile) (image.Image, string, error) {
	f, err := os.Open(input.Path)
	if err != nil {
		return nil, "", errs.Wrap(errs.CodeStorage, err, "failed to open %s", input.Name)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", errs.Wrap(errs.CodeConversion, err, "failed to decode %s", input.Name)
	}
	return img, format, nil
}

func storedImage(path, name, mime string) (job.StoredFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return job.StoredFile{}, errs.Wrap(errs.CodeStorage, err, "generated image missing")
	}
	return job.StoredFile{Name: name, Size: info.Size(), MIME: mime, Path: path}, nil
}
