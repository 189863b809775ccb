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

import "github.com/juju/errors"

const (
	// ErrDataUnavailable means no source dataset could be located.
	ErrDataUnavailable = errors.ConstError("data unavailable")
	// ErrArtifactCorrupt means persisted model files exist but cannot be used.
	ErrArtifactCorrupt = errors.ConstError("artifact corrupt")
	// ErrInferenceFailure means the learned estimator failed on a single prediction.
	ErrInferenceFailure = errors.ConstError("inference failure")
	// ErrValidation means a request was malformed.
	ErrValidation = errors.ConstError("validation error")
)

// Wrapf marks err with kind and annotates it with a formatted message.
func Wrapf(err error, kind errors.ConstError, format string, args ...any) error {
	if err == nil {
		return Errorf(kind, format, args...)
	}
	return errors.Annotatef(errors.WithType(err, kind), format, args...)
}

// Errorf creates a new error of kind.
func Errorf(kind errors.ConstError, format string, args ...any) error {
	return errors.WithType(errors.Errorf(format, args...), kind)
}

// Must panics if err is not nil. Only used at program startup.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}
