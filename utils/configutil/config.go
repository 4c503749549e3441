// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package configutil loads YAML configuration files into structs and
// validates the result.
//
// A file may declare a single parent via an extends directive:
//
// development.yaml:
//   extends: base.yaml
//   zap:
//     level: debug
//
// Parents form a chain, not a tree. Files are applied base-first onto the
// same struct, so the yaml merge rules decide what survives: scalars and
// sequences in an extending file replace the parent's value wholesale, maps
// merge key by key, and anything the extending file omits is inherited.
//
// A relative extends path is resolved against the directory of the file
// that declares it. Validation runs once, on the fully merged struct.
package configutil

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path"
	"path/filepath"
	"strings"

	"github.com/relayr/relayr/utils/stringset"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ErrCycleRef is returned when configuration files extend each other in a
// cycle.
var ErrCycleRef = errors.New("cyclic reference in configuration extends detected")

// ValidationError is returned when the merged configuration fails struct
// validation. Individual field errors are retained.
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field, if any.
func (e ValidationError) ErrForField(name string) error {
	return e.errorMap[name]
}

func (e ValidationError) Error() string {
	var fields []string
	for f, err := range e.errorMap {
		fields = append(fields, fmt.Sprintf("   %s: %v", f, err))
	}
	return "validation failed" + strings.Join(fields, "\n")
}

// Load reads filename, follows its chain of extends directives, deep-merges
// the chain base-first into config, and validates the merged result.
func Load(filename string, config interface{}) error {
	chain, err := readChain(filename)
	if err != nil {
		return err
	}
	// The chain holds the extending file first; parents apply first.
	for i := len(chain) - 1; i >= 0; i-- {
		if err := yaml.Unmarshal(chain[i].data, config); err != nil {
			return fmt.Errorf("unmarshal %s: %s", chain[i].name, err)
		}
	}
	if err := validator.Validate(config); err != nil {
		return ValidationError{errorMap: err.(validator.ErrorMap)}
	}
	return nil
}

type configFile struct {
	name string
	data []byte
}

// readChain reads filename and every ancestor it extends, in extending-first
// order. Each file is read exactly once.
func readChain(filename string) ([]configFile, error) {
	var chain []configFile
	seen := make(stringset.Set)
	for filename != "" {
		if seen.Has(filename) {
			return nil, ErrCycleRef
		}
		seen.Add(filename)

		data, err := ioutil.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		chain = append(chain, configFile{filename, data})

		var directive struct {
			Extends string `yaml:"extends"`
		}
		if err := yaml.Unmarshal(data, &directive); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %s", filename, err)
		}
		parent := directive.Extends
		if parent != "" && !filepath.IsAbs(parent) {
			parent = path.Join(filepath.Dir(filename), parent)
		}
		filename = parent
	}
	return chain, nil
}
