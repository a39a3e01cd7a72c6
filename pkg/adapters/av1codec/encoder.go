// Package av1codec provides an AV1 sample encoder using libaom, muxed into
// MP4 (fragmented) or WebM containers.
package av1codec

/*
#cgo !windows pkg-config: aom
#cgo windows CFLAGS: -IC:/vcpkg/installed/x64-windows-static/include
#cgo windows LDFLAGS: -LC:/vcpkg/installed/x64-windows-static/lib -laom -static -lpthread
#include <aom/aom_encoder.h>
#include <aom/aomcx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_interface() {
    return aom_codec_av1_cx();
}

static aom_codec_err_t init_encoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface,
                                     aom_codec_enc_cfg_t *cfg, aom_codec_flags_t flags) {
    return aom_codec_enc_init_ver(ctx, iface, cfg, flags, AOM_ENCODER_ABI_VERSION);
}

static int is_frame_packet(const aom_codec_cx_pkt_t *pkt) {
    return pkt->kind == AOM_CODEC_CX_FRAME_PKT;
}

static void* get_frame_buf(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.buf;
}

static size_t get_frame_sz(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.sz;
}

static int is_keyframe(const aom_codec_cx_pkt_t *pkt) {
    return (pkt->data.frame.flags & AOM_FRAME_IS_KEY) != 0;
}

static aom_codec_pts_t get_frame_pts(const aom_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.pts;
}

static void set_yuv_pixel(aom_image_t *img, int plane, int idx, unsigned char val) {
    img->planes[plane][idx] = val;
}

static int get_plane_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

static aom_codec_err_t set_cpu_used(aom_codec_ctx_t *ctx, int value) {
    return aom_codec_control(ctx, AOME_SET_CPUUSED, value);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/user/framecast/pkg/ports"
)

// timescale is the codec timebase: microseconds.
const timescale = 1_000_000

// keyframeIntervalUs forces a sync sample at least this often so fragments
// and WebM clusters always start on a keyframe.
const keyframeIntervalUs = int64(2 * timescale)

// Encoder implements ports.SampleEncoder with libaom AV1 compression. The
// container is selected by EncoderConfig.Container at Configure time.
type Encoder struct {
	mu sync.Mutex

	codec    *C.aom_codec_ctx_t
	cfg      *C.aom_codec_enc_cfg_t
	rawFrame *C.aom_image_t

	config ports.EncoderConfig
	mux    muxer

	lastKeyframeUs int64
	frameCount     int
}

// encodedSample is one compressed AV1 frame handed to the muxer.
type encodedSample struct {
	data        []byte
	timestampUs int64
	isKeyframe  bool
}

// muxer turns a stream of compressed samples into container chunks.
type muxer interface {
	// addSample takes ownership of the sample; completed container chunks,
	// if any, are returned.
	addSample(s encodedSample) ([][]byte, error)

	// finish seals the container and returns the remaining chunks.
	finish() ([][]byte, error)

	mimeType() string
}

// New creates an unconfigured AV1 encoder.
func New() *Encoder {
	return &Encoder{}
}

// Configure initializes libaom and the container muxer.
func (e *Encoder) Configure(cfg ports.EncoderConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch cfg.Codec {
	case "av01", "av1":
	default:
		return fmt.Errorf("unsupported codec %q", cfg.Codec)
	}
	if cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return fmt.Errorf("odd dimensions %dx%d not supported by 4:2:0 subsampling", cfg.Width, cfg.Height)
	}

	switch cfg.Container {
	case "", "mp4":
		e.mux = newMP4Muxer(cfg)
	case "webm":
		e.mux = newWebMMuxer(cfg)
	default:
		return fmt.Errorf("unsupported container %q", cfg.Container)
	}
	e.config = cfg
	e.lastKeyframeUs = -keyframeIntervalUs
	e.frameCount = 0

	e.codec = (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if e.codec == nil {
		return fmt.Errorf("failed to allocate codec context")
	}
	C.memset(unsafe.Pointer(e.codec), 0, C.sizeof_aom_codec_ctx_t)

	e.cfg = (*C.aom_codec_enc_cfg_t)(C.malloc(C.sizeof_aom_codec_enc_cfg_t))
	if e.cfg == nil {
		C.free(unsafe.Pointer(e.codec))
		e.codec = nil
		return fmt.Errorf("failed to allocate encoder config")
	}

	iface := C.get_av1_interface()
	if res := C.aom_codec_enc_config_default(iface, e.cfg, 0); res != C.AOM_CODEC_OK {
		e.cleanup()
		return fmt.Errorf("failed to get default config: %d", res)
	}

	e.cfg.g_w = C.uint(cfg.Width)
	e.cfg.g_h = C.uint(cfg.Height)
	e.cfg.g_timebase.num = 1
	e.cfg.g_timebase.den = C.int(timescale)
	e.cfg.g_error_resilient = 0
	e.cfg.g_threads = 4
	e.cfg.g_usage = C.AOM_USAGE_REALTIME

	if cfg.BitrateBps > 0 {
		e.cfg.rc_target_bitrate = C.uint(cfg.BitrateBps / 1000)
	} else {
		e.cfg.rc_target_bitrate = C.uint(cfg.Width * cfg.Height / 1000)
	}

	e.cfg.rc_end_usage = C.AOM_CQ
	if cfg.Quality > 0 && cfg.Quality <= 63 {
		e.cfg.rc_min_quantizer = C.uint(cfg.Quality)
		e.cfg.rc_max_quantizer = C.uint(cfg.Quality + 10)
		if e.cfg.rc_max_quantizer > 63 {
			e.cfg.rc_max_quantizer = 63
		}
	}

	if res := C.init_encoder(e.codec, iface, e.cfg, 0); res != C.AOM_CODEC_OK {
		e.cleanup()
		return fmt.Errorf("failed to initialize encoder: %d", res)
	}

	// 0 = slowest/best, 10 = fastest.
	C.set_cpu_used(e.codec, 8)

	e.rawFrame = (*C.aom_image_t)(C.malloc(C.sizeof_aom_image_t))
	if e.rawFrame == nil {
		C.aom_codec_destroy(e.codec)
		e.cleanup()
		return fmt.Errorf("failed to allocate raw frame")
	}
	if C.aom_img_alloc(e.rawFrame, C.AOM_IMG_FMT_I420, C.uint(cfg.Width), C.uint(cfg.Height), 32) == nil {
		C.free(unsafe.Pointer(e.rawFrame))
		e.rawFrame = nil
		C.aom_codec_destroy(e.codec)
		e.cleanup()
		return fmt.Errorf("failed to allocate image buffer")
	}

	return nil
}

// Encode compresses one RGBA frame and forwards finished samples to the
// muxer. Container chunks that became complete are returned.
func (e *Encoder) Encode(pix []byte, width, height int, timestampMicros int64) ([][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.codec == nil {
		return nil, fmt.Errorf("encoder not configured")
	}
	if width != e.config.Width || height != e.config.Height {
		return nil, fmt.Errorf("frame size %dx%d does not match configured %dx%d", width, height, e.config.Width, e.config.Height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d", len(pix), width*height*4)
	}

	e.rgbaToYUV420(pix)

	flags := C.aom_enc_frame_flags_t(0)
	if e.frameCount == 0 || timestampMicros-e.lastKeyframeUs >= keyframeIntervalUs {
		flags = C.AOM_EFLAG_FORCE_KF
		e.lastKeyframeUs = timestampMicros
	}

	durationUs := C.ulong(timescale / int64(e.config.FrameRate))
	res := C.aom_codec_encode(e.codec, e.rawFrame, C.aom_codec_pts_t(timestampMicros), durationUs, flags)
	if res != C.AOM_CODEC_OK {
		return nil, fmt.Errorf("encoding failed: %d", res)
	}
	e.frameCount++

	return e.collectPackets()
}

// Finish flushes libaom, seals the container and releases codec resources.
func (e *Encoder) Finish() ([][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.codec == nil {
		return nil, fmt.Errorf("encoder not configured")
	}

	if res := C.aom_codec_encode(e.codec, nil, 0, 1, 0); res != C.AOM_CODEC_OK {
		return nil, fmt.Errorf("flush failed: %d", res)
	}
	chunks, err := e.collectPackets()
	if err != nil {
		return nil, err
	}

	tail, err := e.mux.finish()
	if err != nil {
		return nil, err
	}
	chunks = append(chunks, tail...)

	e.cleanup()
	return chunks, nil
}

// MIMEType reports the container MIME type.
func (e *Encoder) MIMEType() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mux == nil {
		return "video/mp4"
	}
	return e.mux.mimeType()
}

// collectPackets drains libaom output packets into the muxer.
func (e *Encoder) collectPackets() ([][]byte, error) {
	var chunks [][]byte
	var iter C.aom_codec_iter_t
	for {
		pkt := C.aom_codec_get_cx_data(e.codec, &iter)
		if pkt == nil {
			break
		}
		if C.is_frame_packet(pkt) == 0 {
			continue
		}
		sample := encodedSample{
			data:        C.GoBytes(C.get_frame_buf(pkt), C.int(C.get_frame_sz(pkt))),
			timestampUs: int64(C.get_frame_pts(pkt)),
			isKeyframe:  C.is_keyframe(pkt) != 0,
		}
		out, err := e.mux.addSample(sample)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, out...)
	}
	return chunks, nil
}

func (e *Encoder) cleanup() {
	if e.rawFrame != nil {
		C.aom_img_free(e.rawFrame)
		C.free(unsafe.Pointer(e.rawFrame))
		e.rawFrame = nil
	}
	if e.codec != nil {
		C.aom_codec_destroy(e.codec)
		C.free(unsafe.Pointer(e.codec))
		e.codec = nil
	}
	if e.cfg != nil {
		C.free(unsafe.Pointer(e.cfg))
		e.cfg = nil
	}
}

// rgbaToYUV420 converts an RGBA pixel buffer into the raw frame planes.
func (e *Encoder) rgbaToYUV420(pix []byte) {
	width := e.config.Width
	height := e.config.Height

	yStride := int(C.get_plane_stride(e.rawFrame, 0))
	uStride := int(C.get_plane_stride(e.rawFrame, 1))
	vStride := int(C.get_plane_stride(e.rawFrame, 2))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := (y*width + x) * 4
			r := int(pix[idx])
			g := int(pix[idx+1])
			b := int(pix[idx+2])

			yVal := ((66*r + 129*g + 25*b + 128) >> 8) + 16
			if yVal > 255 {
				yVal = 255
			}
			if yVal < 0 {
				yVal = 0
			}
			C.set_yuv_pixel(e.rawFrame, 0, C.int(y*yStride+x), C.uchar(yVal))

			if y%2 == 0 && x%2 == 0 {
				uIdx := (y/2)*uStride + (x / 2)
				vIdx := (y/2)*vStride + (x / 2)

				uVal := ((-38*r - 74*g + 112*b + 128) >> 8) + 128
				vVal := ((112*r - 94*g - 18*b + 128) >> 8) + 128

				if uVal > 255 {
					uVal = 255
				}
				if uVal < 0 {
					uVal = 0
				}
				if vVal > 255 {
					vVal = 255
				}
				if vVal < 0 {
					vVal = 0
				}

				C.set_yuv_pixel(e.rawFrame, 1, C.int(uIdx), C.uchar(uVal))
				C.set_yuv_pixel(e.rawFrame, 2, C.int(vIdx), C.uchar(vVal))
			}
		}
	}
}

// Ensure Encoder implements ports.SampleEncoder
var _ ports.SampleEncoder = (*Encoder)(nil)
