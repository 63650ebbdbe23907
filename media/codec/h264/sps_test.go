package h264

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildSPS assembles an RBSP-form SPS from a list of (value, bit-count)
// writes plus raw exp-Golomb codes, MSB-first, zero-padded to a byte
// boundary at the end.
type bitWriter struct {
	bits []byte // one bit per element, 0 or 1
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bits = append(w.bits, byte((v>>uint(i))&1))
	}
}

func (w *bitWriter) writeUE(v uint32) {
	// encode v+1 in binary, k = number of bits minus 1 leading zeros
	x := v + 1
	nbits := 0
	for t := x; t != 0; t >>= 1 {
		nbits++
	}
	for i := 0; i < nbits-1; i++ {
		w.bits = append(w.bits, 0)
	}
	w.writeBits(x, nbits)
}

func (w *bitWriter) writeSE(v int32) {
	var ue uint32
	if v <= 0 {
		ue = uint32(-2 * v)
	} else {
		ue = uint32(2*v - 1)
	}
	w.writeUE(ue)
}

func (w *bitWriter) bytes() []byte {
	n := (len(w.bits) + 7) / 8
	out := make([]byte, n)
	for i, b := range w.bits {
		if b != 0 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func TestParseSPSBaselineNoVUI(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0x67, 8) // nal header (not consumed as data, just skipped)
	w.writeBits(66, 8)   // profile_idc = baseline
	w.writeBits(0, 8)    // constraint flags
	w.writeBits(30, 8)   // level_idc
	w.writeUE(0)         // seq_parameter_set_id
	w.writeUE(4)         // log2_max_frame_num_minus4
	w.writeUE(0)         // pic_order_cnt_type = 0
	w.writeUE(4)         // log2_max_pic_order_cnt_lsb_minus4
	w.writeUE(2)         // max_num_ref_frames
	w.writeBits(0, 1)    // gaps_in_frame_num_value_allowed_flag
	w.writeUE(119)       // pic_width_in_mbs_minus1 -> 120*16=1920
	w.writeUE(67)        // pic_height_in_map_units_minus1 -> 68*16=1088
	w.writeBits(1, 1)    // frame_mbs_only_flag
	w.writeBits(0, 1)    // direct_8x8_inference_flag
	w.writeBits(1, 1)    // frame_cropping_flag
	w.writeUE(0)         // crop_left
	w.writeUE(0)         // crop_right
	w.writeUE(0)         // crop_top
	w.writeUE(4)         // crop_bottom -> height -= 4*2 = 8 -> 1080
	w.writeBits(0, 1)    // vui_parameters_present_flag

	sps := ParseSPS(w.bytes())
	if sps.ProfileIDC != 66 {
		t.Fatalf("ProfileIDC = %d; want 66", sps.ProfileIDC)
	}
	if sps.Width != 1920 || sps.Height != 1080 {
		t.Fatalf("dims = %dx%d; want 1920x1080", sps.Width, sps.Height)
	}
	if sps.ChromaFormatIDC != 1 {
		t.Fatalf("ChromaFormatIDC = %d; want 1 (implicit default)", sps.ChromaFormatIDC)
	}
	if sps.VUI != nil {
		t.Fatalf("VUI = %+v; want nil", sps.VUI)
	}
}

func TestParseSPSHighProfileWithVUI(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0x67, 8)
	w.writeBits(100, 8) // profile_idc = high
	w.writeBits(0, 8)
	w.writeBits(51, 8) // level_idc
	w.writeUE(0)       // seq_parameter_set_id
	w.writeUE(1)       // chroma_format_idc = 4:2:0
	w.writeUE(2)       // bit_depth_luma_minus8 = 2 -> 10 bit
	w.writeUE(2)       // bit_depth_chroma_minus8 = 2
	w.writeBits(0, 1)  // qpprime_y_zero_transform_bypass_flag
	w.writeBits(0, 1)  // seq_scaling_matrix_present_flag
	w.writeUE(4)       // log2_max_frame_num_minus4
	w.writeUE(0)       // pic_order_cnt_type
	w.writeUE(4)       // log2_max_pic_order_cnt_lsb_minus4
	w.writeUE(2)       // max_num_ref_frames
	w.writeBits(0, 1)  // gaps_in_frame_num_value_allowed_flag
	w.writeUE(119)     // pic_width_in_mbs_minus1
	w.writeUE(67)      // pic_height_in_map_units_minus1
	w.writeBits(1, 1)  // frame_mbs_only_flag
	w.writeBits(0, 1)  // direct_8x8_inference_flag
	w.writeBits(0, 1)  // frame_cropping_flag
	w.writeBits(1, 1)  // vui_parameters_present_flag

	// VUI
	w.writeBits(0, 1) // aspect_ratio_info_present_flag
	w.writeBits(0, 1) // overscan_info_present_flag
	w.writeBits(1, 1) // video_signal_type_present_flag
	w.writeBits(5, 3) // video_format
	w.writeBits(0, 1) // video_full_range_flag
	w.writeBits(1, 1) // colour_description_present_flag
	w.writeBits(9, 8) // colour_primaries = bt2020
	w.writeBits(16, 8) // transfer_characteristics = smpte2084
	w.writeBits(9, 8)  // matrix_coefficients = bt2020nc
	w.writeBits(0, 1)  // chroma_loc_info_present_flag
	w.writeBits(1, 1)  // timing_info_present_flag
	w.writeBits(1, 32) // num_units_in_tick
	w.writeBits(60, 32) // time_scale -> fps = 60/(2*1) = 30
	w.writeBits(0, 1)  // fixed_frame_rate_flag
	w.writeBits(0, 1)  // nal_hrd_parameters_present_flag
	w.writeBits(0, 1)  // vcl_hrd_parameters_present_flag
	w.writeBits(0, 1)  // pic_struct_present_flag
	w.writeBits(0, 1)  // bitstream_restriction_flag

	sps := ParseSPS(w.bytes())
	if sps.BitDepthLuma() != 10 {
		t.Fatalf("BitDepthLuma = %d; want 10", sps.BitDepthLuma())
	}
	if sps.PixFmt() != "yuv420p10le" {
		t.Fatalf("PixFmt = %s; want yuv420p10le", sps.PixFmt())
	}
	if sps.VUI == nil {
		t.Fatalf("VUI = nil; want present")
	}
	if sps.VUI.ColorPrimaries != 9 || ColorPrimariesName(sps.VUI.ColorPrimaries) != "bt2020" {
		t.Fatalf("ColorPrimaries = %d; want 9 (bt2020)", sps.VUI.ColorPrimaries)
	}
	if sps.VUI.TransferCharacteristics != 16 {
		t.Fatalf("TransferCharacteristics = %d; want 16", sps.VUI.TransferCharacteristics)
	}
	if sps.VUI.FPS == nil || *sps.VUI.FPS != 30 {
		t.Fatalf("FPS = %v; want 30", sps.VUI.FPS)
	}
}

func TestParseSPSBaselineNoVUIFullDiff(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0x67, 8)
	w.writeBits(66, 8)
	w.writeBits(0, 8)
	w.writeBits(30, 8)
	w.writeUE(0)
	w.writeUE(4)
	w.writeUE(0)
	w.writeUE(4)
	w.writeUE(2)
	w.writeBits(0, 1)
	w.writeUE(119)
	w.writeUE(67)
	w.writeBits(1, 1)
	w.writeBits(0, 1)
	w.writeBits(0, 1) // frame_cropping_flag = 0, no crop this time
	w.writeBits(0, 1) // vui_parameters_present_flag

	want := SPSInfo{
		ProfileIDC:      66,
		LevelIDC:        30,
		ChromaFormatIDC: 1,
		Width:           1920,
		Height:          1088,
	}
	got := ParseSPS(w.bytes())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseSPS() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSPSTruncatedYieldsPartial(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0x67, 8)
	w.writeBits(66, 8)
	w.writeBits(0, 8)
	w.writeBits(30, 8)
	w.writeUE(0)
	// cut off here: no more fields follow

	sps := ParseSPS(w.bytes())
	if sps.ProfileIDC != 66 {
		t.Fatalf("ProfileIDC = %d; want 66 even on truncated input", sps.ProfileIDC)
	}
	if sps.Width != 0 || sps.Height != 0 {
		t.Fatalf("dims = %dx%d; want 0x0 since truncated before the mb grid", sps.Width, sps.Height)
	}
}
