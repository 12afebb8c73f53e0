package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

func TestAEADHMAC(t *testing.T) {
	c, err := NewAESGCMHMACCodec(bytes.Repeat([]byte{1}, 32), []byte("mac"))
	require.NoError(t, err)

	aad := []byte("header")
	packet, err := c.Encrypt([]byte("secret"), aad)
	require.NoError(t, err)

	plain, err := c.Decrypt(packet, aad)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), plain)

	_, err = c.Decrypt(packet, []byte("other"))
	assert.ErrorIs(t, err, merr.ErrStreamCrypto)

	tampered := bytes.Clone(packet)
	tampered[len(tampered)/2] ^= 0xff
	_, err = c.Decrypt(tampered, aad)
	assert.ErrorIs(t, err, merr.ErrStreamCrypto)

	_, err = c.Decrypt(packet[:8], aad)
	assert.ErrorIs(t, err, merr.ErrStreamCrypto)
}

func TestAEADHMACKeys(t *testing.T) {
	_, err := NewAESGCMHMACCodec([]byte("short"), []byte("mac"))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	_, err = NewAESGCMHMACCodec(bytes.Repeat([]byte{1}, 32), nil)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}
