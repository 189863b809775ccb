// Copyright 2026 pricer Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/alugaai/pricer/config"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPOSIX(t *testing.T) {
	// create client
	client := NewPOSIX(filepath.Join(t.TempDir(), "blob"))
	names, err := client.List()
	assert.NoError(t, err)
	assert.Empty(t, names)

	// write a file
	w, err := client.Create("model/test")
	assert.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	assert.NoError(t, err)
	// not visible before close
	_, err = client.Open("model/test")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.NoError(t, w.Close())

	// read the file
	r, err := client.Open("model/test")
	assert.NoError(t, err)
	content, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
	assert.NoError(t, r.Close())

	// list files
	names, err = client.List()
	assert.NoError(t, err)
	assert.Equal(t, []string{"model/test"}, names)

	// remove the file
	assert.NoError(t, client.Remove("model/test"))
	_, err = client.Open("model/test")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.True(t, errors.Is(client.Remove("model/test"), errors.NotFound))
}

func TestOpen(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.S3.Endpoint = "localhost:9000"
	dir := t.TempDir()
	store, err := Open(dir, cfg)
	require.NoError(t, err)
	assert.IsType(t, &POSIX{}, store)
	assert.False(t, IsRemote(dir))

	store, err = Open("s3://models/pricer/v1", cfg)
	require.NoError(t, err)
	s3, ok := store.(*S3)
	require.True(t, ok)
	assert.Equal(t, "models", s3.bucket)
	assert.Equal(t, "pricer/v1", s3.prefix)
	assert.True(t, IsRemote("s3://models/pricer/v1"))
	assert.True(t, IsRemote("gcs://models"))
	assert.True(t, IsRemote("azblob://models"))

	_, err = Open("ftp://models", cfg)
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestSplitURI(t *testing.T) {
	bucket, prefix := splitURI("gcs://bucket", GCSPrefix)
	assert.Equal(t, "bucket", bucket)
	assert.Empty(t, prefix)
	bucket, prefix = splitURI("azblob://container/a/b/", AzurePrefix)
	assert.Equal(t, "container", bucket)
	assert.Equal(t, "a/b", prefix)
	assert.Equal(t, "model.bin", objectName("", "model.bin"))
	assert.Equal(t, "a/b/model.bin", objectName("a/b", "model.bin"))
	assert.Equal(t, "model.bin", trimPrefix("a/b", "a/b/model.bin"))
}

func TestUploadWriter(t *testing.T) {
	var uploaded []byte
	w := newUploadWriter(func(r io.Reader) error {
		var err error
		uploaded, err = io.ReadAll(r)
		return err
	})
	_, err := w.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.Equal(t, "hello", string(uploaded))

	w = newUploadWriter(func(r io.Reader) error {
		return errors.New("quota exceeded")
	})
	assert.ErrorContains(t, w.Close(), "quota exceeded")
}
