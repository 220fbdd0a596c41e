package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ReadWAVHeader consumes a RIFF/WAVE header from r up to the start of the
// data chunk and returns the PCM format. Only 16-bit integer PCM is accepted.
func ReadWAVHeader(r io.Reader) (Format, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, errors.New("not a RIFF/WAVE stream")
	}

	var (
		format  Format
		haveFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return Format{}, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, fmt.Errorf("fmt chunk too small: %d", size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			if audioFormat != 1 {
				return Format{}, fmt.Errorf("unsupported wav encoding %d (want PCM)", audioFormat)
			}
			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			if format.BitsPerSample != 16 {
				return Format{}, fmt.Errorf("unsupported bits per sample %d", format.BitsPerSample)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, errors.New("data chunk before fmt chunk")
			}
			return format, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return Format{}, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
		if id == "fmt " && size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return Format{}, err
			}
		}
	}
}

// NewWAVSource reads a WAV header from r and returns a source over its samples.
func NewWAVSource(r io.Reader, opts PCMReaderOptions) (*PCMReaderSource, Format, error) {
	format, err := ReadWAVHeader(r)
	if err != nil {
		return nil, Format{}, err
	}
	opts.Channels = format.Channels
	opts.SampleRate = format.SampleRate
	if opts.Name == "" {
		opts.Name = "wav"
	}
	return NewPCMReaderSource(r, opts), format, nil
}

// EncodeWAV wraps PCM16 data in a canonical 44-byte WAV header.
func EncodeWAV(pcm []byte, format Format) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(format.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(format.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(format.BytesPerSecond()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(format.BytesPerSample()))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(format.BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
