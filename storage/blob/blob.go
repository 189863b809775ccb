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
	"path"
	"strings"

	"github.com/alugaai/pricer/config"
	"github.com/juju/errors"
)

// URI schemes of remote stores. A URI without a scheme is a local directory.
const (
	S3Prefix    = "s3://"
	GCSPrefix   = "gcs://"
	AzurePrefix = "azblob://"
)

// Store is a flat namespace of named blobs.
type Store interface {
	// Open a blob for reading. A missing blob is reported as errors.NotFound.
	Open(name string) (io.ReadCloser, error)
	// Create a blob for writing. The blob becomes visible once Close returns nil.
	Create(name string) (io.WriteCloser, error)
	// List names of all blobs.
	List() ([]string, error)
	// Remove a blob.
	Remove(name string) error
}

// Open connects to the store at uri: s3://bucket/prefix, gcs://bucket/prefix,
// azblob://container/prefix or a local directory.
func Open(uri string, cfg *config.Config) (Store, error) {
	switch {
	case strings.HasPrefix(uri, S3Prefix):
		bucket, prefix := splitURI(uri, S3Prefix)
		return NewS3(cfg.S3, bucket, prefix)
	case strings.HasPrefix(uri, GCSPrefix):
		bucket, prefix := splitURI(uri, GCSPrefix)
		return NewGCS(cfg.GCS, bucket, prefix)
	case strings.HasPrefix(uri, AzurePrefix):
		container, prefix := splitURI(uri, AzurePrefix)
		return NewAzureBlob(cfg.Azure, container, prefix)
	case strings.Contains(uri, "://"):
		return nil, errors.NotSupportedf("blob store %s", uri)
	}
	return NewPOSIX(uri), nil
}

// IsRemote returns true if uri names a cloud store.
func IsRemote(uri string) bool {
	return strings.HasPrefix(uri, S3Prefix) ||
		strings.HasPrefix(uri, GCSPrefix) ||
		strings.HasPrefix(uri, AzurePrefix)
}

func splitURI(uri, scheme string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(uri, scheme), "/")
	return bucket, strings.Trim(prefix, "/")
}

func objectName(prefix, name string) string {
	return path.Join(prefix, name)
}

func trimPrefix(prefix, name string) string {
	return strings.TrimPrefix(strings.TrimPrefix(name, prefix), "/")
}

// uploadWriter streams writes through a pipe into an upload running in the
// background. Close waits for the upload to finish.
type uploadWriter struct {
	*io.PipeWriter
	done chan error
}

func newUploadWriter(upload func(r io.Reader) error) *uploadWriter {
	pr, pw := io.Pipe()
	w := &uploadWriter{PipeWriter: pw, done: make(chan error, 1)}
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

func (w *uploadWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(<-w.done)
}
