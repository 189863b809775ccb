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

package encoding

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteString(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteString(buf, "abc"))
	assert.NoError(t, WriteString(buf, ""))
	text, err := ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, "abc", text)
	text, err = ReadString(buf)
	assert.NoError(t, err)
	assert.Empty(t, text)
}

func TestReadBytesInvalidLength(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, int32(-1)))
	_, err := ReadBytes(buf)
	assert.Error(t, err)

	buf.Reset()
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, int32(10)))
	buf.WriteString("short")
	_, err = ReadBytes(buf)
	assert.Error(t, err)
}

func TestWriteGob(t *testing.T) {
	type record struct {
		Name   string
		Values []float64
	}
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteGob(buf, record{Name: "rate", Values: []float64{1, 2}}))
	var got record
	assert.NoError(t, ReadGob(buf, &got))
	assert.Equal(t, record{Name: "rate", Values: []float64{1, 2}}, got)
}

func TestHeader(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteHeader(buf, "forest", "0001"))
	id, err := ReadHeader(bytes.NewReader(buf.Bytes()), "forest")
	assert.NoError(t, err)
	assert.Equal(t, "0001", id)
	_, err = ReadHeader(bytes.NewReader(buf.Bytes()), "scaler")
	assert.Error(t, err)
}
