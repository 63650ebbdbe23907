package h264

import "github.com/flowmux/ingestcore/media/bits"

// highProfileFamily lists the profile_idc values that carry the chroma /
// bit-depth / scaling-matrix extension fields in the SPS, per H.264 §7.3.2.1.1.
var highProfileFamily = map[uint8]bool{
	44: true, 83: true, 86: true, 100: true, 110: true,
	118: true, 122: true, 128: true, 244: true,
}

// VUIInfo is the subset of H.264 VUI parameters this pipeline exposes:
// colorimetry and frame timing. Fields follow the VUI defaults in H.264
// §E.2.1 ("unspecified" = 2) when colour_description is absent.
type VUIInfo struct {
	VideoFormat             uint8
	FullRange               bool
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	// FPS is nil when timing_info was absent or num_units_in_tick/time_scale
	// were not both positive.
	FPS *float64
}

// SPSInfo is the decoded subset of a Sequence Parameter Set this pipeline
// needs to describe a video track. ChromaFormatIDC defaults to 1 (4:2:0)
// since baseline/main/extended profiles never signal it explicitly but the
// semantics are 4:2:0 regardless.
type SPSInfo struct {
	ProfileIDC       uint8
	ConstraintFlags  uint8
	LevelIDC         uint8
	ChromaFormatIDC  uint32
	SeparateColour   bool
	BitDepthLumaM8   uint32
	BitDepthChromaM8 uint32
	Width            int
	Height           int
	VUI              *VUIInfo
}

// BitDepthLuma returns the luma sample bit depth (8, 10, ...).
func (s SPSInfo) BitDepthLuma() int { return 8 + int(s.BitDepthLumaM8) }

// ChromaFormat returns the "4:2:0"/"4:2:2"/"4:4:4" descriptor for this SPS.
func (s SPSInfo) ChromaFormat() string { return ChromaFormatString(s.ChromaFormatIDC) }

// PixFmt returns the ffmpeg-style pixel format string for this SPS.
func (s SPSInfo) PixFmt() string { return PixFmt(s.ChromaFormatIDC, s.BitDepthLuma()) }

// ParseSPS decodes an RBSP-form SPS NAL unit (emulation prevention already
// stripped via EBSPToRBSP). A truncated or malformed input does not return
// an error: parsing simply stops at the point of exhaustion and the fields
// read so far, plus the raw (uncropped) width/height once the mb grid is
// known, are returned. This matches the bit reader's EndOfData contract,
// which is caught here rather than propagated.
func ParseSPS(rbsp []byte) SPSInfo {
	sps := SPSInfo{ChromaFormatIDC: 1}
	r := bits.NewReader(rbsp)
	parseSPS(&sps, r)
	return sps
}

func parseSPS(sps *SPSInfo, r *bits.Reader) {
	if err := r.SkipBits(8); err != nil { // nal_unit header byte
		return
	}
	v, err := r.ReadBits(8)
	if err != nil {
		return
	}
	sps.ProfileIDC = uint8(v)
	if v, err = r.ReadBits(8); err != nil {
		return
	}
	sps.ConstraintFlags = uint8(v)
	if v, err = r.ReadBits(8); err != nil {
		return
	}
	sps.LevelIDC = uint8(v)

	if _, err = r.ReadUE(); err != nil { // seq_parameter_set_id
		return
	}

	if highProfileFamily[sps.ProfileIDC] {
		cf, err := r.ReadUE()
		if err != nil {
			return
		}
		sps.ChromaFormatIDC = cf
		if cf == 3 {
			b, err := r.ReadBit()
			if err != nil {
				return
			}
			sps.SeparateColour = b == 1
		}
		if sps.BitDepthLumaM8, err = r.ReadUE(); err != nil {
			return
		}
		if sps.BitDepthChromaM8, err = r.ReadUE(); err != nil {
			return
		}
		if err = r.SkipBits(1); err != nil { // qpprime_y_zero_transform_bypass_flag
			return
		}
		scalingMatrixPresent, err := r.ReadBit()
		if err != nil {
			return
		}
		if scalingMatrixPresent != 0 {
			count := 8
			if cf == 3 {
				count = 12
			}
			for i := 0; i < count; i++ {
				present, err := r.ReadBit()
				if err != nil {
					return
				}
				if present != 0 {
					size := 16
					if i >= 6 {
						size = 64
					}
					if err := skipScalingList(r, size); err != nil {
						return
					}
				}
			}
		}
	}

	if _, err = r.ReadUE(); err != nil { // log2_max_frame_num_minus4
		return
	}
	pocType, err := r.ReadUE()
	if err != nil {
		return
	}
	switch pocType {
	case 0:
		if _, err = r.ReadUE(); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return
		}
	case 1:
		if err = r.SkipBits(1); err != nil { // delta_pic_order_always_zero_flag
			return
		}
		if _, err = r.ReadSE(); err != nil {
			return
		}
		if _, err = r.ReadSE(); err != nil {
			return
		}
		n, err := r.ReadUE()
		if err != nil {
			return
		}
		for i := uint32(0); i < n; i++ {
			if _, err = r.ReadSE(); err != nil {
				return
			}
		}
	}

	if _, err = r.ReadUE(); err != nil { // max_num_ref_frames
		return
	}
	if err = r.SkipBits(1); err != nil { // gaps_in_frame_num_value_allowed_flag
		return
	}

	picWidthInMbsMinus1, err := r.ReadUE()
	if err != nil {
		return
	}
	picHeightInMapUnitsMinus1, err := r.ReadUE()
	if err != nil {
		return
	}
	frameMbsOnly, err := r.ReadBit()
	if err != nil {
		return
	}
	if frameMbsOnly == 0 {
		if err = r.SkipBits(1); err != nil { // mb_adaptive_frame_field_flag
			return
		}
	}
	if err = r.SkipBits(1); err != nil { // direct_8x8_inference_flag
		return
	}

	width := int(picWidthInMbsMinus1+1) * 16
	height := int(2-frameMbsOnly) * int(picHeightInMapUnitsMinus1+1) * 16
	sps.Width, sps.Height = width, height

	cropFlag, err := r.ReadBit()
	if err != nil {
		return
	}
	if cropFlag != 0 {
		left, err := r.ReadUE()
		if err != nil {
			return
		}
		right, err := r.ReadUE()
		if err != nil {
			return
		}
		top, err := r.ReadUE()
		if err != nil {
			return
		}
		bottom, err := r.ReadUE()
		if err != nil {
			return
		}
		sps.Width = width - int(left+right)*2
		sps.Height = height - int(top+bottom)*2
	}

	vuiPresent, err := r.ReadBit()
	if err != nil {
		return
	}
	if vuiPresent != 0 {
		vui := &VUIInfo{ColorPrimaries: 2, TransferCharacteristics: 2, MatrixCoefficients: 2}
		sps.VUI = vui
		parseVUI(vui, r)
	}
}

// skipScalingList consumes one scaling_list() of size entries without
// retaining the values, per H.264 §7.3.2.1.1.1.
func skipScalingList(r *bits.Reader, size int) error {
	lastScale, nextScale := int32(8), int32(8)
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta, err := r.ReadSE()
			if err != nil {
				return err
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

func parseVUI(v *VUIInfo, r *bits.Reader) {
	arPresent, err := r.ReadBit()
	if err != nil {
		return
	}
	if arPresent != 0 {
		idc, err := r.ReadBits(8)
		if err != nil {
			return
		}
		if idc == 255 { // Extended_SAR
			if _, err = r.ReadBits(16); err != nil {
				return
			}
			if _, err = r.ReadBits(16); err != nil {
				return
			}
		}
	}

	overscan, err := r.ReadBit()
	if err != nil {
		return
	}
	if overscan != 0 {
		if err = r.SkipBits(1); err != nil {
			return
		}
	}

	videoSignal, err := r.ReadBit()
	if err != nil {
		return
	}
	if videoSignal != 0 {
		vf, err := r.ReadBits(3)
		if err != nil {
			return
		}
		v.VideoFormat = uint8(vf)
		fr, err := r.ReadBit()
		if err != nil {
			return
		}
		v.FullRange = fr != 0
		colourDescPresent, err := r.ReadBit()
		if err != nil {
			return
		}
		if colourDescPresent != 0 {
			cp, err := r.ReadBits(8)
			if err != nil {
				return
			}
			v.ColorPrimaries = uint8(cp)
			tc, err := r.ReadBits(8)
			if err != nil {
				return
			}
			v.TransferCharacteristics = uint8(tc)
			mc, err := r.ReadBits(8)
			if err != nil {
				return
			}
			v.MatrixCoefficients = uint8(mc)
		}
	}

	chromaLoc, err := r.ReadBit()
	if err != nil {
		return
	}
	if chromaLoc != 0 {
		if _, err = r.ReadUE(); err != nil {
			return
		}
		if _, err = r.ReadUE(); err != nil {
			return
		}
	}

	timingPresent, err := r.ReadBit()
	if err != nil {
		return
	}
	if timingPresent != 0 {
		numUnits, err := r.ReadBits(32)
		if err != nil {
			return
		}
		timeScale, err := r.ReadBits(32)
		if err != nil {
			return
		}
		if err = r.SkipBits(1); err != nil { // fixed_frame_rate_flag
			return
		}
		if numUnits > 0 && timeScale > 0 {
			fps := float64(timeScale) / (2 * float64(numUnits))
			v.FPS = &fps
		}
	}

	nalHRD, err := r.ReadBit()
	if err != nil {
		return
	}
	if nalHRD != 0 {
		if err = skipHRD(r); err != nil {
			return
		}
	}
	vclHRD, err := r.ReadBit()
	if err != nil {
		return
	}
	if vclHRD != 0 {
		if err = skipHRD(r); err != nil {
			return
		}
	}
	if nalHRD != 0 || vclHRD != 0 {
		if err = r.SkipBits(1); err != nil { // low_delay_hrd_flag
			return
		}
	}
	if err = r.SkipBits(1); err != nil { // pic_struct_present_flag
		return
	}

	bitstreamRestriction, err := r.ReadBit()
	if err != nil {
		return
	}
	if bitstreamRestriction != 0 {
		if err = r.SkipBits(1); err != nil { // motion_vectors_over_pic_boundaries_flag
			return
		}
		for i := 0; i < 6; i++ {
			if _, err = r.ReadUE(); err != nil {
				return
			}
		}
	}
}

// skipHRD consumes one hrd_parameters() structure, per H.264 §E.1.2.
func skipHRD(r *bits.Reader) error {
	cpbCntMinus1, err := r.ReadUE()
	if err != nil {
		return err
	}
	if err := r.SkipBits(8); err != nil { // bit_rate_scale(4) + cpb_size_scale(4)
		return err
	}
	for i := uint32(0); i <= cpbCntMinus1; i++ {
		if _, err := r.ReadUE(); err != nil {
			return err
		}
		if _, err := r.ReadUE(); err != nil {
			return err
		}
		if err := r.SkipBits(1); err != nil { // cbr_flag
			return err
		}
	}
	return r.SkipBits(20) // four 5-bit delay-length fields
}
