package yamlload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocumentsSingle(t *testing.T) {
	header, body, err := decodeDocuments("r.yaml", []byte(`id: r1`))
	require.NoError(t, err)
	assert.Nil(t, header)
	require.NotNil(t, body)
}

func TestDecodeDocumentsImportsHeaderPlusBody(t *testing.T) {
	src := []byte(`
version: "1"
imports: ["lists/blocked.yaml"]
---
id: r1
`)
	header, body, err := decodeDocuments("r.yaml", src)
	require.NoError(t, err)
	require.NotNil(t, header)
	require.NotNil(t, body)
}

func TestDecodeDocumentsRejectsTooMany(t *testing.T) {
	src := []byte("id: a\n---\nid: b\n---\nid: c\n")
	_, _, err := decodeDocuments("r.yaml", src)
	require.Error(t, err)
}

func TestDecodeDocumentsRejectsEmpty(t *testing.T) {
	_, _, err := decodeDocuments("r.yaml", []byte(""))
	require.Error(t, err)
}

func TestLoadErrorFormatsWithAndWithoutLine(t *testing.T) {
	werr := wrapErr("r.yaml", 4, assertErr{})
	assert.Equal(t, "r.yaml:4: boom", werr.Error())

	werr2 := wrapErr("r.yaml", 0, assertErr{})
	assert.Equal(t, "r.yaml: boom", werr2.Error())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
