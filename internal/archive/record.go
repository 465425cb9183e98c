package archive

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/dusk-indust/mosromgr/internal/source"
)

// ErrCorrupt is returned when a stored payload no longer matches its
// digest or cannot be decoded.
var ErrCorrupt = errors.New("archive: corrupt record")

// Record is the stored form of one message. Integer keys keep the encoding
// compact and stable.
type Record struct {
	Key      string    `cbor:"1,keyasint"`
	Size     int64     `cbor:"2,keyasint"`
	Digest   []byte    `cbor:"3,keyasint"`
	Payload  []byte    `cbor:"4,keyasint"`
	StoredAt time.Time `cbor:"5,keyasint"`

	// Classification captured at archive time. Kind is empty for documents
	// that did not classify.
	MessageID int    `cbor:"6,keyasint,omitempty"`
	ROID      string `cbor:"7,keyasint,omitempty"`
	Kind      string `cbor:"8,keyasint,omitempty"`
}

// Info is a Record without its payload.
type Info struct {
	Key       string
	Size      int64
	Digest    string
	StoredAt  time.Time
	MessageID int
	ROID      string
	Kind      string
}

func (r Record) info() Info {
	return Info{
		Key:       r.Key,
		Size:      r.Size,
		Digest:    fmt.Sprintf("%x", r.Digest),
		StoredAt:  r.StoredAt,
		MessageID: r.MessageID,
		ROID:      r.ROID,
		Kind:      r.Kind,
	}
}

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("archive: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("archive: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic("archive: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = source.NewZstdDecoder(source.MaxDocumentSize)
	if err != nil {
		panic("archive: zstd decoder initialization failed: " + err.Error())
	}
}

func digest(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

// newRecord compresses data and stamps it with its digest.
func newRecord(key string, data []byte, now time.Time) Record {
	return Record{
		Key:      key,
		Size:     int64(len(data)),
		Digest:   digest(data),
		Payload:  zstdEncoder.EncodeAll(data, nil),
		StoredAt: now.UTC(),
	}
}

func encodeRecord(r Record) ([]byte, error) {
	b, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("archive: encode %s: %w", r.Key, err)
	}
	return b, nil
}

func decodeRecord(b []byte) (Record, error) {
	var r Record
	if err := decMode.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return r, nil
}

// open decompresses the payload and checks it against the digest.
func (r Record) open() ([]byte, error) {
	if r.Size < 0 || r.Size > source.MaxDocumentSize {
		return nil, fmt.Errorf("%w: %s: size %d out of range", ErrCorrupt, r.Key, r.Size)
	}
	data, err := zstdDecoder.DecodeAll(r.Payload, make([]byte, 0, r.Size))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, r.Key, err)
	}
	if !bytes.Equal(digest(data), r.Digest) {
		return nil, fmt.Errorf("%w: %s: digest mismatch", ErrCorrupt, r.Key)
	}
	return data, nil
}
