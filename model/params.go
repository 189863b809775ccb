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

package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alugaai/pricer/base/log"
	"go.uber.org/zap"
)

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names of the random forest.
const (
	NTrees          ParamName = "n_trees"
	MaxDepth        ParamName = "max_depth"
	MinSamplesSplit ParamName = "min_samples_split"
	MinSamplesLeaf  ParamName = "min_samples_leaf"
	RandomState     ParamName = "random_state"
)

// Params stores hyper-parameters of a model.
type Params map[ParamName]any

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params, len(parameters))
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets an integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int64:
			return int(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("actual_type", fmt.Sprintf("%T", val)),
				zap.String("expected_type", "int"))
		}
	}
	return _default
}

// GetInt64 gets an int64 parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("actual_type", fmt.Sprintf("%T", val)),
				zap.String("expected_type", "int64"))
		}
	}
	return _default
}

// Overwrite returns a copy of parameters with values of params set on top.
func (parameters Params) Overwrite(params Params) Params {
	merged := parameters.Copy()
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// ToString formats parameters in name order.
func (parameters Params) ToString() string {
	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, string(name))
	}
	sort.Strings(names)
	var builder strings.Builder
	builder.WriteString("{")
	for i, name := range names {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(fmt.Sprintf("%s: %v", name, parameters[ParamName(name)]))
	}
	builder.WriteString("}")
	return builder.String()
}

// ToMap converts parameters to a string-keyed map for serialization.
func (parameters Params) ToMap() map[string]any {
	m := make(map[string]any, len(parameters))
	for k, v := range parameters {
		m[string(k)] = v
	}
	return m
}

// ParamsGrid is the search space of a grid search.
type ParamsGrid map[ParamName][]any

// Len returns the number of searched parameters.
func (grid ParamsGrid) Len() int {
	return len(grid)
}

// NumCombinations returns the number of parameter combinations.
func (grid ParamsGrid) NumCombinations() int {
	count := 1
	for _, values := range grid {
		count *= len(values)
	}
	return count
}

// Names returns parameter names in sorted order.
func (grid ParamsGrid) Names() []ParamName {
	names := make([]ParamName, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Combinations enumerates every combination. Names vary in sorted order, the
// last name fastest, so the enumeration is deterministic.
func (grid ParamsGrid) Combinations() []Params {
	names := grid.Names()
	combinations := make([]Params, 0, grid.NumCombinations())
	var dfs func(depth int, params Params)
	dfs = func(depth int, params Params) {
		if depth == len(names) {
			combinations = append(combinations, params.Copy())
			return
		}
		name := names[depth]
		for _, value := range grid[name] {
			params[name] = value
			dfs(depth+1, params)
		}
		delete(params, name)
	}
	if len(names) > 0 {
		dfs(0, make(Params))
	}
	return combinations
}
