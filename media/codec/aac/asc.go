// Package aac decodes the MPEG-4 AudioSpecificConfig carried in FLV AAC
// sequence header tags (ISO/IEC 14496-3 §1.6.2.1).
//
// Grounded on bugVanisher-streamer's media/av/avutil.go, which builds an
// AAC CodecData from these same bytes via the aacparser package; the table
// and field layout here follow that same standard, read directly off
// media/bits.Reader instead of a borrowed CodecData type.
package aac

import "github.com/flowmux/ingestcore/media/bits"

// sampleRates is the standard MPEG-4 samplingFrequencyIndex table.
var sampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// Config is the decoded subset of an AudioSpecificConfig this pipeline
// needs: object type, sample rate and channel count.
type Config struct {
	AudioObjectType uint8
	SampleRate      int
	ChannelCount    int
}

// Parse decodes an AudioSpecificConfig. A truncated input yields the
// fields decoded before the end of data, with the rest left zero; a
// samplingFrequencyIndex outside the table leaves SampleRate zero.
// Callers fall back to the coarser FLV audio tag header fields for any
// field left zero.
func Parse(b []byte) Config {
	var c Config
	r := bits.NewReader(b)

	objType, err := r.ReadBits(5)
	if err != nil {
		return c
	}
	c.AudioObjectType = uint8(objType)

	freqIdx, err := r.ReadBits(4)
	if err != nil {
		return c
	}
	if freqIdx == 0xf {
		rate, err := r.ReadBits(24)
		if err != nil {
			return c
		}
		c.SampleRate = int(rate)
	} else if int(freqIdx) < len(sampleRates) {
		c.SampleRate = sampleRates[freqIdx]
	}

	chanCfg, err := r.ReadBits(4)
	if err != nil {
		return c
	}
	c.ChannelCount = int(chanCfg)

	return c
}
