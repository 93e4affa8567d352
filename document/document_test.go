package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberpath/sentinel/crypto"
	"github.com/cyberpath/sentinel/value"
)

func TestNewDocument(t *testing.T) {
	data := value.MustParse(`{"name":"Test","value":42}`)
	doc, err := New("test-id", data, crypto.Suite{})
	require.NoError(t, err)

	assert.Equal(t, "test-id", doc.ID)
	assert.Equal(t, uint64(1), doc.Version)
	assert.True(t, value.Equal(data, doc.Data))
	assert.NotEmpty(t, doc.Hash)
	assert.Empty(t, doc.Signature)
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)
}

func TestNewSignedDocument(t *testing.T) {
	_, priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	suite := crypto.Suite{Key: priv}

	doc, err := New("signed", value.MustParse(`{"a":1}`), suite)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Signature)

	ok, err := doc.VerifySignature(suite.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNextIncrementsVersion(t *testing.T) {
	doc, err := New("test", value.MustParse(`{"initial":"data"}`), crypto.Suite{})
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	next, err := doc.Next(value.MustParse(`{"new":"data"}`), crypto.Suite{})
	require.NoError(t, err)

	assert.Equal(t, uint64(2), next.Version)
	assert.Equal(t, doc.CreatedAt, next.CreatedAt)
	assert.True(t, next.UpdatedAt.After(doc.UpdatedAt))
	assert.NotEqual(t, doc.Hash, next.Hash)

	// The original record is untouched.
	assert.Equal(t, uint64(1), doc.Version)
}

func TestHashIgnoresMetadata(t *testing.T) {
	data := value.MustParse(`{"a":1}`)
	a, err := New("id-a", data, crypto.Suite{})
	require.NoError(t, err)
	b, err := New("id-b", data, crypto.Suite{})
	require.NoError(t, err)

	next, err := a.Next(data, crypto.Suite{})
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, a.Hash, next.Hash)
}

func TestVerifyHash(t *testing.T) {
	doc, err := New("test", value.MustParse(`{"a":1}`), crypto.Suite{})
	require.NoError(t, err)

	ok, err := doc.VerifyHash(crypto.Blake3)
	require.NoError(t, err)
	assert.True(t, ok)

	doc.Data = value.MustParse(`{"a":2}`)
	ok, err = doc.VerifyHash(crypto.Blake3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistedRoundTrip(t *testing.T) {
	_, priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	doc, err := New("test", value.MustParse(`{"nested":{"b":2,"a":[1,null,true]}}`), crypto.Suite{Key: priv})
	require.NoError(t, err)

	raw, err := doc.Encode()
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Version, got.Version)
	assert.Equal(t, doc.Hash, got.Hash)
	assert.Equal(t, doc.Signature, got.Signature)
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, value.Equal(doc.Data, got.Data))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"version":1}`))
	require.Error(t, err)
	_, err = Decode([]byte(`{"id":"x"}`))
	require.Error(t, err)
}

func TestProject(t *testing.T) {
	doc, err := New("test", value.MustParse(`{"name":"Alice","age":30,"city":"NYC"}`), crypto.Suite{})
	require.NoError(t, err)

	p := doc.Project([]string{"name", "age"})
	assert.True(t, value.Equal(value.MustParse(`{"name":"Alice","age":30}`), p.Data))
	assert.Equal(t, doc.ID, p.ID)
	assert.Equal(t, doc.Version, p.Version)
	assert.Equal(t, doc.Hash, p.Hash)

	// Projection does not touch the source document.
	assert.Equal(t, 3, doc.Data.Len())
}
