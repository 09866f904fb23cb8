package bootstrap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketpairForTest(t *testing.T) (a, b *os.File) {
	t.Helper()
	a, b, err := socketpair("test")
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestSendRecvToken(t *testing.T) {
	a, b := socketpairForTest(t)

	go func() {
		_ = sendToken("test", a, tokenGrandchild)
	}()

	got, err := recvToken("test", b)
	require.NoError(t, err)
	assert.Equal(t, tokenGrandchild, got)
}

func TestExpectTokenMismatch(t *testing.T) {
	a, b := socketpairForTest(t)

	go func() {
		_ = sendToken("test", a, tokenChildFinish)
	}()

	err := expectToken("test", b, tokenGrandchild)
	require.Error(t, err)
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrProtocolViolation, be.Kind)
}

func TestSendRecvTokenPID(t *testing.T) {
	a, b := socketpairForTest(t)

	go func() {
		_ = sendTokenPID("test", a, tokenUsermapPls, 4242)
	}()

	pid, err := recvTokenPID("test", b, tokenUsermapPls)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestSendRecvBarePID(t *testing.T) {
	a, b := socketpairForTest(t)

	go func() {
		_ = sendPID("test", a, 99)
	}()

	pid, err := recvPID("test", b)
	require.NoError(t, err)
	assert.Equal(t, 99, pid)
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "USERMAP_PLS", tokenUsermapPls.String())
	assert.Equal(t, "USERMAP_ACK", tokenUsermapAck.String())
	assert.Equal(t, "GRANDCHILD", tokenGrandchild.String())
	assert.Equal(t, "CHILD_FINISH", tokenChildFinish.String())
	assert.Equal(t, "UNKNOWN_TOKEN", token(0xEE).String())
}
