package carrier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbedLSBHeaderIsMSBFirst(t *testing.T) {
	buf := make([]byte, 16+8*2)
	for i := range buf {
		buf[i] = 0xAA
	}
	out, err := embedLSB(buf, 16, []byte("hi"))
	require.NoError(t, err)

	// length 2 sets only bit 14 of the header
	for i := 0; i < 16; i++ {
		want := byte(0xAA)
		if i == 14 {
			want = 0xAB
		}
		require.Equal(t, want, out[i], "header byte %d", i)
	}
	// 'h' = 0x68 = 01101000
	bits := []byte{0, 1, 1, 0, 1, 0, 0, 0}
	for i, b := range bits {
		require.Equal(t, b, out[16+i]&1, "payload bit %d", i)
	}
}

func TestEmbedLSBOnlyTouchesLowBit(t *testing.T) {
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = byte(i * 31)
	}
	orig := append([]byte(nil), buf...)

	out, err := embedLSB(buf, 32, []byte("fragment"))
	require.NoError(t, err)
	require.Equal(t, orig, buf, "input must not be modified")

	used := 32 + 8*len("fragment")
	for i := range out {
		require.Equal(t, orig[i]&0xFE, out[i]&0xFE, "byte %d", i)
		if i >= used {
			require.Equal(t, orig[i], out[i], "byte %d past the payload", i)
		}
	}
}

func TestLSBRoundTrip(t *testing.T) {
	buf := make([]byte, 1024)
	for _, headerBits := range []int{16, 32} {
		for _, msg := range []string{"", "a", "q0x-Zk_9", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="} {
			out, err := embedLSB(buf, headerBits, []byte(msg))
			require.NoError(t, err)
			length, ok := lsbLength(out, headerBits)
			require.True(t, ok)
			require.EqualValues(t, len(msg), length)
			payload, ok := lsbPayload(out, headerBits, length)
			require.True(t, ok)
			require.Equal(t, msg, string(payload))
		}
	}
}

func TestEmbedLSBCapacity(t *testing.T) {
	msg := []byte("abcd")
	exact := make([]byte, 16+8*len(msg))
	_, err := embedLSB(exact, 16, msg)
	require.NoError(t, err)

	_, err = embedLSB(exact[:len(exact)-1], 16, msg)
	require.ErrorIs(t, err, ErrCarrierTooSmall)

	_, err = embedLSB(make([]byte, 8), 16, nil)
	require.ErrorIs(t, err, ErrCarrierTooSmall)
}

func TestEmbedLSBHeaderOverflow(t *testing.T) {
	_, err := embedLSB(make([]byte, 16+8*65536), 16, make([]byte, 65536))
	require.ErrorIs(t, err, ErrFragmentTooLong)
}

func TestLSBShortBuffers(t *testing.T) {
	_, ok := lsbLength(make([]byte, 15), 16)
	require.False(t, ok)

	_, ok = lsbPayload(make([]byte, 16+7), 16, 1)
	require.False(t, ok)
}

func TestTrimFragment(t *testing.T) {
	require.Equal(t, "abc", trimFragment([]byte("abc \t\n")))
	require.Equal(t, " abc", trimFragment([]byte(" abc")))
	require.Equal(t, "", trimFragment(nil))
}
