package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberpath/sentinel/value"
)

func TestHashDeterministic(t *testing.T) {
	v := value.MustParse(`{"name":"Test","value":42}`)
	assert.Equal(t, HashValue(v), HashValue(v))
	assert.Len(t, HashValue(v), 64)
}

func TestHashIgnoresKeyOrder(t *testing.T) {
	a := value.MustParse(`{"a":1,"b":2}`)
	b := value.MustParse(`{"b":2,"a":1}`)
	assert.Equal(t, HashValue(a), HashValue(b))
}

func TestHashDistinguishesStructure(t *testing.T) {
	assert.NotEqual(t, HashValue(value.MustParse(`{"a":1}`)), HashValue(value.MustParse(`{"a":2}`)))
	assert.NotEqual(t, HashValue(value.MustParse(`[1,2]`)), HashValue(value.MustParse(`[2,1]`)))
}

func TestHashAlgorithms(t *testing.T) {
	v := value.MustParse(`{"a":1}`)

	b3, err := HashValueWith(Blake3, v)
	require.NoError(t, err)
	s3, err := HashValueWith(SHA3, v)
	require.NoError(t, err)
	assert.NotEqual(t, b3, s3)

	_, err = HashValueWith("md5", v)
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)

	digest := HashValue(value.MustParse(`{"a":1}`))
	sig, err := SignDigest(digest, priv)
	require.NoError(t, err)

	ok, err := VerifyDigest(digest, sig, pub)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsMutations(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)
	otherPub, _, err := GenerateKey()
	require.NoError(t, err)

	digest := "deadbeef"
	sig, err := SignDigest(digest, priv)
	require.NoError(t, err)

	ok, err := VerifyDigest("deadbeee", sig, pub)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyDigest(digest, sig, otherPub)
	require.NoError(t, err)
	assert.False(t, ok)

	// Corrupted and truncated signatures are false, not errors.
	ok, err = VerifyDigest(digest, sig[:16], pub)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyDigest(digest, "not hex!", pub)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsMalformedKey(t *testing.T) {
	_, err := VerifyDigest("d", "00", []byte{1, 2, 3})
	require.Error(t, err)
}

func TestSigningDeterministic(t *testing.T) {
	_, priv, err := GenerateKey()
	require.NoError(t, err)
	a, err := SignDigest("digest", priv)
	require.NoError(t, err)
	b, err := SignDigest("digest", priv)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveKeyStable(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	assert.Equal(t, DeriveKey("passphrase", salt), DeriveKey("passphrase", salt))
	assert.NotEqual(t, DeriveKey("passphrase", salt), DeriveKey("other", salt))

	k, err := DeriveKeyWith(PBKDF2, "passphrase", salt)
	require.NoError(t, err)
	assert.Len(t, k, KeySize)
}

func TestEncryptDecrypt(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	key := DeriveKey("passphrase", salt)

	sealed, err := Encrypt([]byte("secret key material"), key)
	require.NoError(t, err)

	plain, err := Decrypt(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret key material"), plain)

	_, err = Decrypt(sealed, DeriveKey("wrong", salt))
	require.Error(t, err)
}

func TestEncryptDecryptAESGCM(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	key := DeriveKey("passphrase", salt)

	sealed, err := EncryptWith(AESGCM, []byte("payload"), key)
	require.NoError(t, err)
	plain, err := DecryptWith(AESGCM, sealed, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plain)
}

func TestSuite(t *testing.T) {
	_, priv, err := GenerateKey()
	require.NoError(t, err)

	signed := Suite{Key: priv}
	digest, err := signed.Digest(value.MustParse(`{"a":1}`))
	require.NoError(t, err)
	sig, err := signed.Sign(digest)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	ok, err := VerifyDigest(digest, sig, signed.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)

	unsigned := Suite{}
	sig, err = unsigned.Sign(digest)
	require.NoError(t, err)
	assert.Empty(t, sig)
	assert.Nil(t, unsigned.PublicKey())
}
