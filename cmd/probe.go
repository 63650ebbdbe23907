package cmd

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/flowmux/ingestcore/media/flv"
	"github.com/flowmux/ingestcore/media/mediainfo"
)

const probeReadSize = 64 * 1024

var probeCmd = &cobra.Command{
	Use:   "probe [file]",
	Short: "Demux an FLV stream and print its consolidated media info",
	Long:  "Reads an FLV file (or stdin, if no file is given), feeding it through the demuxer incrementally, and prints the media info snapshot each time the demuxer emits it.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProbe,
}

var probeJSON bool

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().BoolVar(&probeJSON, "json", false, "print media info as JSON instead of a human-readable summary")
}

func runProbe(cmd *cobra.Command, args []string) error {
	var src io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	var infoSeen bool
	d := flv.NewDemuxer(flv.Callbacks{
		OnMediaInfo: func(info mediainfo.MediaInfo) {
			infoSeen = true
			printMediaInfo(info)
		},
	})

	var pending []byte
	var byteStart int64
	buf := make([]byte, probeReadSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			consumed, err := d.ParseChunk(pending, byteStart)
			if err != nil {
				return err
			}
			byteStart += consumed
			pending = pending[consumed:]
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	if len(pending) > 0 {
		log.Warn().Int("bytes", len(pending)).Msg("probe: trailing bytes left unparsed at end of stream")
	}
	if !infoSeen {
		log.Warn().Msg("probe: stream ended without producing any media info")
	}
	return nil
}

func printMediaInfo(info mediainfo.MediaInfo) {
	if probeJSON {
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(info, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("probe: failed to marshal media info")
			return
		}
		fmt.Println(string(b))
		return
	}

	fmt.Printf("video: %s %dx%d profile=%d level=%d %s %s fps=%.2f\n",
		orNone(info.VideoCodec), info.Width, info.Height, info.Profile, info.Level,
		info.ChromaFormat, info.PixFmt, info.FPS)
	fmt.Printf("color: range=%s primaries=%s transfer=%s space=%s\n",
		info.ColorRange, info.ColorPrimariesName, info.ColorTransferName, info.ColorSpaceName)
	fmt.Printf("audio: %s rate=%d channels=%d\n",
		orNone(info.AudioCodec), info.AudioSampleRate, info.AudioChannelCount)
	fmt.Printf("bitrate: audio=%dkbps video=%dkbps\n\n", info.AudioDataRate, info.VideoDataRate)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
