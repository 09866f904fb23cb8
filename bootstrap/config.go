package bootstrap

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config is the bootstrap's own parsed view of the init-pipe message (spec
// §3/§4.1) — distinct from, and much narrower than, the richer
// libcontainer/configs.Config the managed runtime receives at handoff.
type Config struct {
	CloneFlags    uint32
	ContainerID   string
	BundlePath    string
	RootfsPath    string
	UIDMap        []byte
	GIDMap        []byte
	UserNSEnabled bool
}

// msgHeader is the fixed 16-byte framing header.
type msgHeader struct {
	Length uint32
	Type   uint16
	Flags  uint16
	Seq    uint32
	Pid    uint32
}

// ParseConfig decodes one netlink-style framed message from r into a Config.
// It reads exactly one message: the 16-byte header, then
// header.Length-16 bytes of packed attributes. Every field copied out of
// the payload is copied into its own field-owned slice/string, so the raw
// payload buffer can be released the moment ParseConfig returns (spec §9's
// ownership note).
func ParseConfig(r io.Reader) (*Config, error) {
	var hdrBuf [msgHeaderLen]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return nil, newErr("config-parser", ErrMalformedConfig, fmt.Errorf("read header: %w", err))
	}
	hdr := msgHeader{
		Length: binary.LittleEndian.Uint32(hdrBuf[0:4]),
		Type:   binary.LittleEndian.Uint16(hdrBuf[4:6]),
		Flags:  binary.LittleEndian.Uint16(hdrBuf[6:8]),
		Seq:    binary.LittleEndian.Uint32(hdrBuf[8:12]),
		Pid:    binary.LittleEndian.Uint32(hdrBuf[12:16]),
	}
	if hdr.Type != initMsgType {
		return nil, newErr("config-parser", ErrMalformedConfig, fmt.Errorf("unexpected message type %d, want %d", hdr.Type, initMsgType))
	}
	if hdr.Length < msgHeaderLen {
		return nil, newErr("config-parser", ErrMalformedConfig, fmt.Errorf("header length %d shorter than header itself", hdr.Length))
	}

	payload := make([]byte, hdr.Length-msgHeaderLen)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, newErr("config-parser", ErrMalformedConfig, fmt.Errorf("read payload: %w", err))
		}
	}

	cfg := &Config{}
	if err := cfg.parseAttrs(payload); err != nil {
		return nil, err
	}
	cfg.UserNSEnabled = cfg.UserNSEnabled || cfg.CloneFlags&flagNewUser != 0
	return cfg, nil
}

const flagNewUser = 0x10000000 // CLONE_NEWUSER, duplicated here to avoid importing unix into the platform-agnostic parser

func (cfg *Config) parseAttrs(payload []byte) error {
	off := 0
	for off < len(payload) {
		if off+nlaHeaderLen > len(payload) {
			return newErr("config-parser", ErrMalformedConfig, fmt.Errorf("attribute header overruns payload at offset %d", off))
		}
		nlaLen := int(binary.LittleEndian.Uint16(payload[off : off+2]))
		nlaType := int(binary.LittleEndian.Uint16(payload[off+2 : off+4]))
		if nlaLen < nlaHeaderLen {
			return newErr("config-parser", ErrMalformedConfig, fmt.Errorf("attribute %d: nla_len %d underflows header", nlaType, nlaLen))
		}
		if off+nlaLen > len(payload) {
			return newErr("config-parser", ErrMalformedConfig, fmt.Errorf("attribute %d: nla_len %d overruns payload at offset %d", nlaType, nlaLen, off))
		}
		value := payload[off+nlaHeaderLen : off+nlaLen]
		if err := cfg.setAttr(nlaType, value); err != nil {
			return err
		}
		off += nlaAlign(nlaLen)
	}
	return nil
}

func (cfg *Config) setAttr(typ int, value []byte) error {
	switch typ {
	case attrCloneFlags:
		if len(value) < 4 {
			return newErr("config-parser", ErrMalformedConfig, fmt.Errorf("CLONE_FLAGS attribute too short: %d bytes", len(value)))
		}
		cfg.CloneFlags = binary.LittleEndian.Uint32(value[0:4])
	case attrUIDMap:
		cfg.UIDMap = append([]byte(nil), value...)
	case attrGIDMap:
		cfg.GIDMap = append([]byte(nil), value...)
	case attrRootfsPath:
		cfg.RootfsPath = cString(value)
	case attrBundlePath:
		cfg.BundlePath = cString(value)
	case attrContainerID:
		cfg.ContainerID = cString(value)
	case attrUserNS:
		if len(value) < 4 {
			return newErr("config-parser", ErrMalformedConfig, fmt.Errorf("USER_NS attribute too short: %d bytes", len(value)))
		}
		cfg.UserNSEnabled = binary.LittleEndian.Uint32(value[0:4]) != 0
	default:
		logrus.Debugf("bootstrap: config parser: skipping unknown attribute type %d (%d bytes)", typ, len(value))
	}
	return nil
}

// cString trims every trailing NUL byte, if any, from a fixed-width string
// attribute payload.
func cString(b []byte) string {
	s := string(b)
	return strings.TrimRight(s, "\x00")
}

// Encode re-serializes cfg into the same wire format ParseConfig reads,
// modulo attribute order (spec §8 property 7). Used by tests, and
// available to anything assembling a message to hand to this bootstrap
// (e.g. a test harness standing in for the orchestrator).
func (cfg *Config) Encode(seq, pid uint32) []byte {
	var attrs []byte
	attrs = appendAttr(attrs, attrCloneFlags, le32(cfg.CloneFlags))
	if cfg.ContainerID != "" {
		attrs = appendAttr(attrs, attrContainerID, nulTerminated(cfg.ContainerID))
	}
	if cfg.BundlePath != "" {
		attrs = appendAttr(attrs, attrBundlePath, nulTerminated(cfg.BundlePath))
	}
	if cfg.RootfsPath != "" {
		attrs = appendAttr(attrs, attrRootfsPath, nulTerminated(cfg.RootfsPath))
	}
	if len(cfg.UIDMap) > 0 {
		attrs = appendAttr(attrs, attrUIDMap, cfg.UIDMap)
	}
	if len(cfg.GIDMap) > 0 {
		attrs = appendAttr(attrs, attrGIDMap, cfg.GIDMap)
	}
	if cfg.UserNSEnabled {
		attrs = appendAttr(attrs, attrUserNS, le32(1))
	}

	hdr := make([]byte, msgHeaderLen)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(msgHeaderLen+len(attrs)))
	binary.LittleEndian.PutUint16(hdr[4:6], initMsgType)
	binary.LittleEndian.PutUint16(hdr[6:8], 0)
	binary.LittleEndian.PutUint32(hdr[8:12], seq)
	binary.LittleEndian.PutUint32(hdr[12:16], pid)
	return append(hdr, attrs...)
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func nulTerminated(s string) []byte {
	return append([]byte(s), 0)
}

func appendAttr(buf []byte, typ int, value []byte) []byte {
	nlaLen := nlaHeaderLen + len(value)
	header := make([]byte, nlaHeaderLen)
	binary.LittleEndian.PutUint16(header[0:2], uint16(nlaLen))
	binary.LittleEndian.PutUint16(header[2:4], uint16(typ))
	buf = append(buf, header...)
	buf = append(buf, value...)
	padded := nlaAlign(nlaLen)
	for i := nlaLen; i < padded; i++ {
		buf = append(buf, 0)
	}
	return buf
}
