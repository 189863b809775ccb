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

package base

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 20.0, Median([]float64{20, 30, 20}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	// input is not reordered
	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 2.0, Slope([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, Slope([]float64{0, 1, 2, 3}, []float64{3, 2, 1, 0}), 1e-9)
	assert.Equal(t, 0.0, Slope([]float64{2, 2, 2}, []float64{1, 5, 9}))
	assert.Equal(t, 0.0, Slope(nil, nil))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.2346, Round(1.23456, 4))
	assert.Equal(t, 1.3, Round(1.3, 4))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1.5))
	assert.Equal(t, 1.5, Clamp(2, 0, 1.5))
}

func TestErrorKinds(t *testing.T) {
	err := Wrapf(errors.New("open price_model.bin"), ErrArtifactCorrupt, "load bundle")
	assert.True(t, errors.Is(err, ErrArtifactCorrupt))
	assert.False(t, errors.Is(err, ErrInferenceFailure))
	assert.Contains(t, err.Error(), "load bundle")

	err = Errorf(ErrValidation, "budget must be at least %d", 100)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "budget must be at least 100")

	err = errors.Trace(Wrapf(nil, ErrDataUnavailable, "no dataset"))
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}

func TestQuantile(t *testing.T) {
	values := []float64{10000, 100, 300, 200, 400}
	assert.InDelta(t, 104.0, Quantile(values, 0.01), 1e-9)
	assert.InDelta(t, 9616.0, Quantile(values, 0.99), 1e-9)
	assert.Equal(t, 300.0, Quantile(values, 0.5))
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
}
