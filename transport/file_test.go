package transport

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linePayload(n int, line string) *Payload {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return &Payload{Raw: buf.Bytes(), Records: n}
}

func TestFileAppend(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "engine.log")
	ft, err := NewFile(FileConfig{Path: path})
	require.NoError(t, err)

	require.NoError(t, ft.Send(context.Background(), linePayload(2, `{"m":1}`)))
	require.NoError(t, ft.Send(context.Background(), linePayload(1, `{"m":2}`)))
	require.NoError(t, ft.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal("{\"m\":1}\n{\"m\":1}\n{\"m\":2}\n", string(data))
}

func TestFileRotationBySize(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "engine.log")
	ft, err := NewFile(FileConfig{
		Path:         path,
		MaxSizeBytes: 100,
		MaxFiles:     2,
	})
	require.NoError(t, err)

	line := `{"padding":"xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"}`
	for i := 0; i < 6; i++ {
		require.NoError(t, ft.Send(context.Background(), linePayload(1, line)))
	}
	require.NoError(t, ft.Shutdown(context.Background()))

	t.Log("the live file and the retained rotations exist")
	assert.FileExists(path)
	assert.FileExists(path + ".1")
	assert.FileExists(path + ".2")
	assert.NoFileExists(path + ".3")

	live, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(live)
}

func TestFileRotationCompressesSegments(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "engine.log")
	ft, err := NewFile(FileConfig{
		Path:            path,
		MaxSizeBytes:    100,
		MaxFiles:        3,
		CompressRotated: true,
	})
	require.NoError(t, err)

	line := `{"padding":"yyyyyyyyyyyyyyyyyyyyyyyyyyyyyyyy"}`
	for i := 0; i < 4; i++ {
		require.NoError(t, ft.Send(context.Background(), linePayload(1, line)))
	}
	require.NoError(t, ft.Shutdown(context.Background()))

	assert.FileExists(path + ".1.gz")

	t.Log("the rotated segment gunzips back to log lines")
	f, err := os.Open(path + ".1.gz")
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = out.ReadFrom(gz)
	require.NoError(t, err)
	assert.Contains(out.String(), `"padding"`)
}

func TestFileRequiresPath(t *testing.T) {
	_, err := NewFile(FileConfig{})
	assert.Error(t, err)
}
