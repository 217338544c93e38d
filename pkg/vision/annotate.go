package vision

import (
	"fmt"
	"image"
	"image/color"

	"github.com/teslashibe/posture-police/pkg/monitor"
	"gocv.io/x/gocv"
)

var (
	white  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black  = color.RGBA{A: 255}
	green  = color.RGBA{G: 255, A: 255}
	red    = color.RGBA{R: 255, A: 255}
	yellow = color.RGBA{R: 255, G: 255, A: 255}
	cyan   = color.RGBA{G: 255, B: 255, A: 255}
)

// annotator owns one captured frame until the monitor closes it.
type annotator struct {
	img     gocv.Mat
	quality int
}

// Annotate draws the overlay for r and encodes the frame as JPEG.
func (a *annotator) Annotate(r monitor.TickResult) ([]byte, error) {
	if a.img.Empty() {
		return nil, fmt.Errorf("vision: empty frame")
	}
	w, h := a.img.Cols(), a.img.Rows()
	draw(&a.img, buildHUD(r, w, h), r.Color.RGBA())

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, a.img, []int{gocv.IMWriteJpegQuality, a.quality})
	if err != nil {
		return nil, fmt.Errorf("vision: encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the frame.
func (a *annotator) Close() error {
	return a.img.Close()
}

func draw(img *gocv.Mat, o hud, c color.RGBA) {
	w, h := img.Cols(), img.Rows()

	if o.skeleton {
		gocv.Line(img, o.ear, o.shoulder, c, 4)
		gocv.Circle(img, o.ear, 6, cyan, -1)
		gocv.Circle(img, o.shoulder, 6, cyan, -1)
	}

	if o.prompt != "" {
		gocv.PutText(img, o.prompt, image.Pt(30, 60), gocv.FontHersheySimplex, 0.8, green, 2)
		return
	}

	if o.border {
		thickness := 8
		if o.ringing {
			thickness = 16
		}
		gocv.Rectangle(img, image.Rect(0, 0, w, h), red, thickness)
	}
	if o.ringing {
		gocv.Rectangle(img, o.badge, red, -1)
		gocv.PutText(img, "ALARM", image.Pt(o.badge.Min.X+22, o.badge.Max.Y-10), gocv.FontHersheySimplex, 0.9, white, 2)
	}

	box := image.Rect(10, 10, 340, 110)
	if o.countdown != "" {
		box.Max.Y = 135
	}
	gocv.Rectangle(img, box, black, -1)
	gocv.Rectangle(img, box, white, 2)
	for i, line := range o.lines {
		gocv.PutText(img, line, image.Pt(20, 35+i*25), gocv.FontHersheySimplex, 0.5, white, 1)
	}
	gocv.PutText(img, o.status, image.Pt(20, 90), gocv.FontHersheySimplex, 0.7, c, 2)
	if o.countdown != "" {
		gocv.PutText(img, o.countdown, image.Pt(20, 120), gocv.FontHersheySimplex, 0.5, yellow, 1)
	}

	if o.banner != "" {
		size := gocv.GetTextSize(o.banner, gocv.FontHersheySimplex, 1.1, 3)
		gocv.PutText(img, o.banner, image.Pt((w-size.X)/2, h/2), gocv.FontHersheySimplex, 1.1, red, 3)
	}
}
