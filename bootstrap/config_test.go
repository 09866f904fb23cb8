package bootstrap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigRoundTrip(t *testing.T) {
	cfg := &Config{
		CloneFlags:  uint32(flagNewUser) | 0x20000000,
		ContainerID: "c0ffee",
		BundlePath:  "/run/bundles/c0ffee",
		RootfsPath:  "/run/bundles/c0ffee/rootfs",
		UIDMap:      []byte("0 100000 65536\n"),
		GIDMap:      []byte("0 100000 65536\n"),
	}

	wire := cfg.Encode(1, 4242)
	got, err := ParseConfig(bytes.NewReader(wire))
	require.NoError(t, err)

	assert.Equal(t, cfg.CloneFlags, got.CloneFlags)
	assert.Equal(t, cfg.ContainerID, got.ContainerID)
	assert.Equal(t, cfg.BundlePath, got.BundlePath)
	assert.Equal(t, cfg.RootfsPath, got.RootfsPath)
	assert.Equal(t, cfg.UIDMap, got.UIDMap)
	assert.Equal(t, cfg.GIDMap, got.GIDMap)
	assert.True(t, got.UserNSEnabled, "CLONE_NEWUSER in clone flags must imply UserNSEnabled")
}

func TestParseConfigRejectsWrongType(t *testing.T) {
	cfg := &Config{CloneFlags: 0}
	wire := cfg.Encode(1, 1)
	wire[4] = 0xff // corrupt the type field
	wire[5] = 0xff

	_, err := ParseConfig(bytes.NewReader(wire))
	require.Error(t, err)
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrMalformedConfig, be.Kind)
}

func TestParseConfigRejectsTruncatedHeader(t *testing.T) {
	_, err := ParseConfig(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrMalformedConfig, be.Kind)
}

func TestParseConfigRejectsOverrunAttribute(t *testing.T) {
	cfg := &Config{CloneFlags: 0}
	wire := cfg.Encode(1, 1)

	// The CLONE_FLAGS attribute starts right after the 16-byte header;
	// inflate its nla_len beyond the buffer without extending the buffer.
	wire[16] = 0xff
	wire[17] = 0x7f

	_, err := ParseConfig(bytes.NewReader(wire))
	require.Error(t, err)
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrMalformedConfig, be.Kind)
}

func TestParseConfigToleratesUnknownAttribute(t *testing.T) {
	cfg := &Config{CloneFlags: 0}
	wire := cfg.Encode(1, 1)
	wire = appendAttr(wire, 99999, []byte("ignored"))
	// Fix up the header length to account for the appended attribute.
	newLen := uint32(len(wire))
	wire[0] = byte(newLen)
	wire[1] = byte(newLen >> 8)
	wire[2] = byte(newLen >> 16)
	wire[3] = byte(newLen >> 24)

	_, err := ParseConfig(bytes.NewReader(wire))
	require.NoError(t, err)
}
