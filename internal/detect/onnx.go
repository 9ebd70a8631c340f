package detect

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"

	"pdf-translator/internal/logger"
)

const (
	onnxInputName  = "images"
	onnxOutputName = "output0"

	// confidenceThreshold filters model detections; boxes at or below it
	// are discarded.
	confidenceThreshold = 0.25

	// defaultInputSize is used when no size hint is supplied.
	defaultInputSize = 1024

	// envSharedLibrary optionally points at the onnxruntime shared
	// library when it is not on the default search path.
	envSharedLibrary = "ONNXRUNTIME_SHARED_LIBRARY"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime() error {
	ortInitOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if lib := os.Getenv(envSharedLibrary); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNXDetector runs the DocLayout-YOLO model through onnxruntime.
type ONNXDetector struct {
	modelPath string
	session   *ort.DynamicAdvancedSession
}

// NewONNXDetector loads the model at modelPath and prepares an inference
// session. The model is expected to take a normalized CHW image named
// "images" and emit (1, N, 6) rows of x0, y0, x1, y1, confidence, class.
func NewONNXDetector(modelPath string) (*ONNXDetector, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("model path not specified")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{onnxInputName}, []string{onnxOutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference session: %w", err)
	}

	logger.Info("layout model loaded", logger.String("path", modelPath))
	return &ONNXDetector{modelPath: modelPath, session: session}, nil
}

// Predict runs the model on the rendered page image.
func (d *ONNXDetector) Predict(req Request) (Prediction, error) {
	if req.Image == nil {
		return Prediction{}, fmt.Errorf("no page image supplied")
	}

	size := normalizeInputSize(req.SizeHint)
	canvas, tf := letterbox(req.Image, size)
	data := tensorData(canvas)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), data)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Prediction{}, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	defer out.Destroy()

	shape := out.GetShape()
	if len(shape) != 3 || shape[2] != 6 {
		return Prediction{}, fmt.Errorf("unexpected output shape %v", shape)
	}

	bounds := req.Image.Bounds()
	boxes := decodeDetections(out.GetData(), int(shape[1]), tf, bounds.Dx(), bounds.Dy())

	logger.Debug("layout inference complete",
		logger.Int("page", req.PageIndex),
		logger.Int("inputSize", size),
		logger.Int("boxes", len(boxes)))

	return Prediction{Boxes: boxes, Classes: DocLayoutClasses}, nil
}

// Close releases the inference session.
func (d *ONNXDetector) Close() error {
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}

// normalizeInputSize rounds the hint down to a multiple of 32.
func normalizeInputSize(hint int) int {
	if hint <= 0 {
		return defaultInputSize
	}
	size := hint / 32 * 32
	if size < 32 {
		size = 32
	}
	return size
}

// letterboxTransform maps letterboxed coordinates back to the source image.
type letterboxTransform struct {
	scale      float64
	padX, padY float64
}

// letterbox scales the image into a size×size canvas, preserving aspect
// ratio and centering it on gray padding.
func letterbox(img image.Image, size int) (*image.RGBA, letterboxTransform) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	padX := (size - newW) / 2
	padY := (size - newH) / 2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	pad := image.NewUniform(color.RGBA{R: 114, G: 114, B: 114, A: 255})
	draw.Draw(dst, dst.Bounds(), pad, image.Point{}, draw.Src)
	draw.BiLinear.Scale(dst,
		image.Rect(padX, padY, padX+newW, padY+newH),
		img, b, draw.Src, nil)

	return dst, letterboxTransform{scale: scale, padX: float64(padX), padY: float64(padY)}
}

// tensorData converts an RGBA canvas to normalized CHW float32 values.
func tensorData(img *image.RGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+4]
			data[y*w+x] = float32(p[0]) / 255.0
			data[plane+y*w+x] = float32(p[1]) / 255.0
			data[2*plane+y*w+x] = float32(p[2]) / 255.0
		}
	}
	return data
}

// decodeDetections filters raw model rows by confidence and maps the
// surviving boxes back to source-image pixels.
func decodeDetections(raw []float32, rows int, tf letterboxTransform, origW, origH int) []Box {
	if rows*6 > len(raw) {
		rows = len(raw) / 6
	}
	var boxes []Box
	for i := 0; i < rows; i++ {
		row := raw[i*6 : i*6+6]
		conf := row[4]
		if conf <= confidenceThreshold {
			continue
		}
		boxes = append(boxes, Box{
			X0:         clampF((float64(row[0])-tf.padX)/tf.scale, 0, float64(origW)),
			Y0:         clampF((float64(row[1])-tf.padY)/tf.scale, 0, float64(origH)),
			X1:         clampF((float64(row[2])-tf.padX)/tf.scale, 0, float64(origW)),
			Y1:         clampF((float64(row[3])-tf.padY)/tf.scale, 0, float64(origH)),
			Class:      int(row[5]),
			Confidence: conf,
		})
	}
	return boxes
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
