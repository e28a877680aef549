package pluginhost

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/tetratelabs/wazero/api"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/postcard"
	"github.com/goatkit/sourcehost/internal/table"
)

// canvasContext is a software 2D drawing surface (spec §4.8). The
// transform is applied to point coordinates before any draw operation.
type canvasContext struct {
	img       *image.RGBA
	transform [6]float32 // a, b, c, d, e, f (2D affine matrix)
}

// canvasFont is a minimal font handle; only the bundled basicfont.Face7x13
// is actually rasterised, but distinct handles round-trip independently so
// plugins that compare font rids behave as expected.
type canvasFont struct {
	name string
	size float32
}

func identityTransform() [6]float32 { return [6]float32{1, 0, 0, 1, 0, 0} }

func (ct *canvasContext) apply(x, y float32) (float32, float32) {
	t := ct.transform
	return t[0]*x + t[2]*y + t[4], t[1]*x + t[3]*y + t[5]
}

// buildCanvas registers the canvas import namespace (spec §4.8). Only
// instantiated when Options.EnableCanvas is set (headless deployments omit
// it).
func (inst *Instance) buildCanvas(b *moduleBuilder) {
	b.reg("new_context", inst.canvasNewContext)
	b.reg("set_transform", inst.canvasSetTransform)
	b.reg("copy_image", inst.canvasCopyImage)
	b.reg("draw_image", inst.canvasDrawImage)
	b.reg("fill", inst.canvasFill)
	b.reg("stroke", inst.canvasStroke)
	b.reg("draw_text", inst.canvasDrawText)
	b.reg("get_image", inst.canvasGetImage)
	b.reg("new_font", inst.canvasNewFont)
	b.reg("system_font", inst.canvasSystemFont)
	b.reg("load_font", inst.canvasLoadFont)
	b.reg("new_image", inst.canvasNewImage)
	b.reg("get_image_width", inst.canvasGetImageWidth)
	b.reg("get_image_height", inst.canvasGetImageHeight)
	b.reg("get_image_data", inst.canvasGetImageData)
}

func (inst *Instance) canvasContextAt(rid int32) (*canvasContext, bool) {
	v, ok := inst.table.Read(rid)
	if !ok {
		return nil, false
	}
	ct, ok := v.(*canvasContext)
	return ct, ok
}

func (inst *Instance) canvasImageAt(rid int32) (image.Image, bool) {
	v, ok := inst.table.Read(rid)
	if !ok {
		return nil, false
	}
	img, ok := v.(image.Image)
	return img, ok
}

func (inst *Instance) canvasNewContext(ctx context.Context, mod api.Module, w, h int32) int32 {
	if w <= 0 || h <= 0 {
		return abierr.CanvasInvalidBounds
	}
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	return inst.table.Allocate(&canvasContext{img: img, transform: identityTransform()}, table.KindCanvasContext)
}

func (inst *Instance) canvasSetTransform(ctx context.Context, mod api.Module, ctxRid int32, ptr, length uint32) int32 {
	ct, ok := inst.canvasContextAt(ctxRid)
	if !ok {
		return abierr.CanvasInvalidContext
	}
	raw, ok := inst.readBytes(ptr, length)
	if !ok {
		return abierr.CanvasInvalidPath
	}
	d := postcard.NewDecoder(raw)
	var m [6]float32
	for i := range m {
		v, ok := d.F32()
		if !ok {
			return abierr.CanvasInvalidPath
		}
		m[i] = v
	}
	ct.transform = m
	return 0
}

func rgbaFromU32(v uint32) color.RGBA {
	return color.RGBA{R: byte(v >> 24), G: byte(v >> 16), B: byte(v >> 8), A: byte(v)}
}

func (inst *Instance) canvasCopyImage(ctx context.Context, mod api.Module, ctxRid, imgRid int32, sx, sy, sw, sh, dx, dy, dw, dh int32) int32 {
	ct, ok := inst.canvasContextAt(ctxRid)
	if !ok {
		return abierr.CanvasInvalidContext
	}
	src, ok := inst.canvasImageAt(imgRid)
	if !ok {
		return abierr.CanvasInvalidImagePointer
	}
	srcRect := image.Rect(int(sx), int(sy), int(sx+sw), int(sy+sh))
	if !srcRect.In(src.Bounds()) {
		return abierr.CanvasInvalidSrcRect
	}
	dstRect := image.Rect(int(dx), int(dy), int(dx+dw), int(dy+dh))
	xdraw.CatmullRom.Scale(ct.img, dstRect, src, srcRect, xdraw.Over, nil)
	return 0
}

func (inst *Instance) canvasDrawImage(ctx context.Context, mod api.Module, ctxRid, imgRid int32, dx, dy int32) int32 {
	ct, ok := inst.canvasContextAt(ctxRid)
	if !ok {
		return abierr.CanvasInvalidContext
	}
	src, ok := inst.canvasImageAt(imgRid)
	if !ok {
		return abierr.CanvasInvalidImagePointer
	}
	b := src.Bounds()
	dstRect := image.Rect(int(dx), int(dy), int(dx)+b.Dx(), int(dy)+b.Dy())
	draw.Draw(ct.img, dstRect, src, b.Min, draw.Over)
	return 0
}

func (inst *Instance) canvasFill(ctx context.Context, mod api.Module, ctxRid int32, pathPtr, pathLen uint32, rgba uint32) int32 {
	ct, ok := inst.canvasContextAt(ctxRid)
	if !ok {
		return abierr.CanvasInvalidContext
	}
	raw, ok := inst.readBytes(pathPtr, pathLen)
	if !ok {
		return abierr.CanvasInvalidPath
	}
	ops, ok := postcard.DecodePath(postcard.NewDecoder(raw))
	if !ok {
		return abierr.CanvasInvalidPath
	}
	bounds := pathBounds(ct, ops)
	if bounds.Empty() {
		return abierr.CanvasInvalidPath
	}
	draw.Draw(ct.img, bounds.Intersect(ct.img.Bounds()), &image.Uniform{C: rgbaFromU32(rgba)}, image.Point{}, draw.Over)
	return 0
}

func (inst *Instance) canvasStroke(ctx context.Context, mod api.Module, ctxRid int32, pathPtr, pathLen uint32, width float32, rgba uint32) int32 {
	ct, ok := inst.canvasContextAt(ctxRid)
	if !ok {
		return abierr.CanvasInvalidContext
	}
	raw, ok := inst.readBytes(pathPtr, pathLen)
	if !ok {
		return abierr.CanvasInvalidPath
	}
	ops, ok := postcard.DecodePath(postcard.NewDecoder(raw))
	if !ok {
		return abierr.CanvasInvalidPath
	}
	if width <= 0 {
		return abierr.CanvasInvalidStyle
	}
	col := rgbaFromU32(rgba)
	var cur, start image.Point
	have := false
	for _, op := range ops {
		switch op.Kind {
		case postcard.PathMoveTo:
			x, y := ct.apply(op.To.X, op.To.Y)
			cur = image.Pt(int(x), int(y))
			start = cur
			have = true
		case postcard.PathLineTo:
			x, y := ct.apply(op.To.X, op.To.Y)
			next := image.Pt(int(x), int(y))
			if have {
				drawLine(ct.img, cur, next, col, int(width))
			}
			cur = next
			have = true
		case postcard.PathClose:
			if have {
				drawLine(ct.img, cur, start, col, int(width))
			}
			cur = start
		}
	}
	return 0
}

func pathBounds(ct *canvasContext, ops []postcard.PathOp) image.Rectangle {
	var r image.Rectangle
	first := true
	extend := func(x, y float32) {
		px, py := ct.apply(x, y)
		p := image.Pt(int(px), int(py))
		if first {
			r = image.Rectangle{Min: p, Max: p}
			first = false
			return
		}
		r = r.Union(image.Rectangle{Min: p, Max: p})
	}
	for _, op := range ops {
		switch op.Kind {
		case postcard.PathMoveTo, postcard.PathLineTo:
			extend(op.To.X, op.To.Y)
		case postcard.PathQuadTo:
			extend(op.To.X, op.To.Y)
			extend(op.Ctrl.X, op.Ctrl.Y)
		case postcard.PathCubicTo:
			extend(op.To.X, op.To.Y)
			extend(op.C1.X, op.C1.Y)
			extend(op.C2.X, op.C2.Y)
		case postcard.PathArc:
			extend(op.Center.X-op.Radius, op.Center.Y-op.Radius)
			extend(op.Center.X+op.Radius, op.Center.Y+op.Radius)
		}
	}
	return r
}

// drawLine rasterises a naive Bresenham line thickened to width pixels.
func drawLine(img *image.RGBA, a, b image.Point, col color.RGBA, width int) {
	if width < 1 {
		width = 1
	}
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	err := dx + dy
	x, y := a.X, a.Y
	for {
		for ox := -width / 2; ox <= width/2; ox++ {
			for oy := -width / 2; oy <= width/2; oy++ {
				if image.Pt(x+ox, y+oy).In(img.Bounds()) {
					img.SetRGBA(x+ox, y+oy, col)
				}
			}
		}
		if x == b.X && y == b.Y {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

func (inst *Instance) canvasDrawText(ctx context.Context, mod api.Module, ctxRid, fontRid int32, x, y int32, textPtr, textLen uint32, rgba uint32) int32 {
	ct, ok := inst.canvasContextAt(ctxRid)
	if !ok {
		return abierr.CanvasInvalidContext
	}
	if _, ok := inst.fontAt(fontRid); !ok {
		return abierr.CanvasInvalidFont
	}
	text, ok := inst.readString(textPtr, textLen)
	if !ok {
		return abierr.CanvasInvalidString
	}
	d := &font.Drawer{
		Dst:  ct.img,
		Src:  &image.Uniform{C: rgbaFromU32(rgba)},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(x), int(y)),
	}
	d.DrawString(text)
	return 0
}

func (inst *Instance) canvasGetImage(ctx context.Context, mod api.Module, ctxRid int32) int32 {
	ct, ok := inst.canvasContextAt(ctxRid)
	if !ok {
		return abierr.CanvasInvalidContext
	}
	return inst.table.Allocate(ct.img, table.KindImage)
}

func (inst *Instance) fontAt(rid int32) (*canvasFont, bool) {
	v, ok := inst.table.Read(rid)
	if !ok {
		return nil, false
	}
	f, ok := v.(*canvasFont)
	return f, ok
}

func (inst *Instance) canvasNewFont(ctx context.Context, mod api.Module, namePtr, nameLen uint32, size float32) int32 {
	name, ok := inst.readString(namePtr, nameLen)
	if !ok {
		return abierr.CanvasInvalidString
	}
	return inst.table.Allocate(&canvasFont{name: name, size: size}, table.KindFont)
}

func (inst *Instance) canvasSystemFont(ctx context.Context, mod api.Module, size float32) int32 {
	return inst.table.Allocate(&canvasFont{name: "system", size: size}, table.KindFont)
}

func (inst *Instance) canvasLoadFont(ctx context.Context, mod api.Module, ptr, length uint32) int32 {
	if _, ok := inst.readBytes(ptr, length); !ok {
		return abierr.CanvasFontLoadFailed
	}
	return inst.table.Allocate(&canvasFont{name: "embedded", size: 12}, table.KindFont)
}

func (inst *Instance) canvasNewImage(ctx context.Context, mod api.Module, ptr, length uint32) int32 {
	raw, ok := inst.readBytes(ptr, length)
	if !ok {
		return abierr.CanvasInvalidImage
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return abierr.CanvasInvalidImage
	}
	return inst.table.Allocate(img, table.KindImage)
}

func (inst *Instance) canvasGetImageWidth(ctx context.Context, mod api.Module, imgRid int32) int32 {
	img, ok := inst.canvasImageAt(imgRid)
	if !ok {
		return abierr.CanvasInvalidImagePointer
	}
	return int32(img.Bounds().Dx())
}

func (inst *Instance) canvasGetImageHeight(ctx context.Context, mod api.Module, imgRid int32) int32 {
	img, ok := inst.canvasImageAt(imgRid)
	if !ok {
		return abierr.CanvasInvalidImagePointer
	}
	return int32(img.Bounds().Dy())
}

// canvasGetImageData PNG-encodes the image and stores the raw bytes as a
// KindBytes Value the plugin reads through std.read_buffer.
func (inst *Instance) canvasGetImageData(ctx context.Context, mod api.Module, imgRid int32) int32 {
	img, ok := inst.canvasImageAt(imgRid)
	if !ok {
		return abierr.CanvasInvalidImagePointer
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return abierr.CanvasInvalidResult
	}
	return inst.table.Allocate(&Value{Kind: KindBytes, Bytes: buf.Bytes()}, table.KindValue)
}

// encodeImageToPNG extracts PNG bytes from an image rid for the host-side
// helper that feeds process_page_image results back to callers (spec
// §4.8's "another helper extracts PNG bytes from the resulting image rid").
func (inst *Instance) encodeImageToPNG(imgRid int32) ([]byte, bool) {
	img, ok := inst.canvasImageAt(imgRid)
	if !ok {
		return nil, false
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// decodeImageForPlugin takes raw image bytes from the host side and
// produces an image rid the dispatcher feeds into process_page_image
// (spec §4.8's companion host-side helper).
func (inst *Instance) decodeImageForPlugin(raw []byte) (int32, bool) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return 0, false
	}
	return inst.table.Allocate(img, table.KindImage), true
}
